// Package txn submits note mutations to the ledger and follows each
// resulting transaction until it is confirmed or fails.
package txn

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// Status is the lifecycle position of a transaction handle.
type Status int

const (
	StatusPending Status = iota + 1
	StatusConfirming
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirming:
		return "confirming"
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions can follow.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Update is one observed state of a handle.
type Update struct {
	Status        Status
	Confirmations uint64

	// NoteID is the id assigned by a confirmed create.
	NoteID  uint64
	Receipt *core.Receipt

	Reason core.FailureReason
	Err    error
}

// Handle tracks one submitted mutation. Handles are never reused; a
// resubmission after failure gets a fresh one.
type Handle struct {
	ID          uuid.UUID
	Action      string
	Mutation    core.Mutation
	From        common.Address
	SubmittedAt time.Time

	mu      sync.Mutex
	hash    common.Hash
	history []Update
	changed chan struct{}
	done    chan struct{}
}

func newHandle(action string, m core.Mutation, from common.Address) *Handle {
	return &Handle{
		ID:          uuid.New(),
		Action:      action,
		Mutation:    m,
		From:        from,
		SubmittedAt: time.Now(),
		changed:     make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Kind is shorthand for h.Mutation.Kind().
func (h *Handle) Kind() core.Kind {
	return h.Mutation.Kind()
}

// Hash is the transaction hash, zero until the ledger accepted the send.
func (h *Handle) Hash() common.Hash {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hash
}

// Current returns the latest update. A handle whose send is still in
// progress reports Pending.
func (h *Handle) Current() Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.history) == 0 {
		return Update{Status: StatusPending}
	}
	return h.history[len(h.history)-1]
}

// Status returns the current status.
func (h *Handle) Status() Status {
	return h.Current().Status
}

// Done is closed once the handle reaches a terminal status.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the handle is terminal and returns the terminal update.
func (h *Handle) Wait(ctx context.Context) (Update, error) {
	select {
	case <-h.done:
		return h.Current(), nil
	case <-ctx.Done():
		return h.Current(), ctx.Err()
	}
}

// sent records the broadcast hash and enters Pending.
func (h *Handle) sent(hash common.Hash) {
	h.mu.Lock()
	h.hash = hash
	h.mu.Unlock()
	h.transition(Update{Status: StatusPending})
}

func (h *Handle) fail(reason core.FailureReason, err error) bool {
	return h.transition(Update{Status: StatusFailed, Reason: reason, Err: err})
}

// progress refreshes the confirmation count without adding a transition.
func (h *Handle) progress(confirmations uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.history); n > 0 && h.history[n-1].Status == StatusConfirming {
		h.history[n-1].Confirmations = confirmations
	}
}

// transition appends u when it moves the handle to a new status. Terminal
// handles never change again.
func (h *Handle) transition(u Update) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n := len(h.history); n > 0 {
		last := h.history[n-1].Status
		if last.Terminal() || last == u.Status {
			return false
		}
	}
	h.history = append(h.history, u)

	close(h.changed)
	h.changed = make(chan struct{})
	if u.Status.Terminal() {
		close(h.done)
	}
	return true
}

// since returns the updates after the first n and a channel closed on the
// next transition.
func (h *Handle) since(n int) ([]Update, <-chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > len(h.history) {
		n = len(h.history)
	}
	return append([]Update(nil), h.history[n:]...), h.changed
}
