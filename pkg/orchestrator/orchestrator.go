// Package orchestrator drives a user action from validation through
// submission and confirmation to cache invalidation.
//
// Each action moves Idle → Validating → Submitting → Watching → Settled and
// back to Idle. Cache entries are invalidated only after the transaction is
// Confirmed, and only the keys the mutation affects. A failed transaction
// leaves every cache entry untouched.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/aretw0/lifecycle"
	"github.com/ethereum/go-ethereum/common"

	"github.com/JPrieve/web3-notes/pkg/core"
	"github.com/JPrieve/web3-notes/pkg/form"
	"github.com/JPrieve/web3-notes/pkg/query"
	"github.com/JPrieve/web3-notes/pkg/txn"
)

// ErrClosed is returned once the orchestrator is closed.
var ErrClosed = errors.New("orchestrator closed")

// Phase is the position of one action.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseValidating
	PhaseSubmitting
	PhaseWatching
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseValidating:
		return "validating"
	case PhaseSubmitting:
		return "submitting"
	case PhaseWatching:
		return "watching"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// Outcome is the settled result of one action.
type Outcome struct {
	Action string
	Kind   core.Kind
	Handle *txn.Handle

	// Update is the terminal update of Handle.
	Update txn.Update

	// Invalidated lists the keys marked stale after confirmation.
	Invalidated []query.Key

	Err error
}

// Confirmed reports whether the action landed.
func (o Outcome) Confirmed() bool {
	return o.Err == nil && o.Update.Status == txn.StatusConfirmed
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithForm attaches the form machine driven by SubmitForm.
func WithForm(m *form.Machine) Option {
	return func(o *Orchestrator) {
		o.form = m
	}
}

// WithOutcomeBuffer sets the capacity of the Outcomes channel.
func WithOutcomeBuffer(size int) Option {
	return func(o *Orchestrator) {
		if size > 0 {
			o.buffer = size
		}
	}
}

// Orchestrator coordinates the cache, submitter, watcher and form.
type Orchestrator struct {
	cache     *query.Cache
	submitter *txn.Submitter
	watcher   *txn.Watcher
	identity  core.Identity
	form      *form.Machine
	logger    *slog.Logger
	buffer    int

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	phases    map[string]Phase
	outcomes  chan Outcome
	closed    bool
	confirmed int
	failed    int
}

// New wires an Orchestrator. The watcher must be the one the submitter
// tracks handles with.
func New(cache *query.Cache, submitter *txn.Submitter, watcher *txn.Watcher, id core.Identity, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		cache:     cache,
		submitter: submitter,
		watcher:   watcher,
		identity:  id,
		buffer:    16,
		ctx:       ctx,
		cancel:    cancel,
		phases:    make(map[string]Phase),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.form == nil {
		o.form = form.New(form.WithLogger(o.logger))
	}
	o.outcomes = make(chan Outcome, o.buffer)
	return o
}

// Run performs m and blocks until it settles or ctx is done. Leaving early
// does not abandon the action: it still settles and invalidates in the
// background.
//
// Validation errors, ErrNotConnected and ErrActionInFlight are returned
// before anything is sent; in the last case the Outcome carries the handle
// already in flight. A failed transaction returns its terminal error.
func (o *Orchestrator) Run(ctx context.Context, m core.Mutation) (Outcome, error) {
	h, done, err := o.begin(ctx, m, false, nil)
	if err != nil {
		return Outcome{Action: m.ActionKey(), Kind: m.Kind(), Handle: h, Err: err}, err
	}

	select {
	case out := <-done:
		return out, out.Err
	case <-ctx.Done():
		return Outcome{Action: h.Action, Kind: h.Kind(), Handle: h}, ctx.Err()
	}
}

// Dispatch starts m and returns its handle without waiting. The settled
// Outcome is delivered on Outcomes.
func (o *Orchestrator) Dispatch(ctx context.Context, m core.Mutation) (*txn.Handle, error) {
	h, _, err := o.begin(ctx, m, true, nil)
	return h, err
}

// Outcomes delivers the settled result of every dispatched action. When the
// buffer is full the oldest unread outcome is kept and the new one dropped.
func (o *Orchestrator) Outcomes() <-chan Outcome {
	return o.outcomes
}

// Form returns the form machine.
func (o *Orchestrator) Form() *form.Machine {
	return o.form
}

// SubmitForm submits the open draft and waits for it to settle. The form
// returns to Idle on confirmation and to Error otherwise.
func (o *Orchestrator) SubmitForm(ctx context.Context) (Outcome, error) {
	m, err := o.form.BeginSubmit()
	if err != nil {
		return Outcome{Err: err}, err
	}

	settleForm := func(out Outcome) {
		if err := o.form.Settle(out.Err); err != nil {
			o.logger.Warn("form settle failed", "error", err)
		}
	}
	h, done, err := o.begin(ctx, m, false, settleForm)
	if err != nil {
		settleForm(Outcome{Err: err})
		return Outcome{Action: m.ActionKey(), Kind: m.Kind(), Handle: h, Err: err}, err
	}

	select {
	case out := <-done:
		return out, out.Err
	case <-ctx.Done():
		return Outcome{Action: h.Action, Kind: h.Kind(), Handle: h}, ctx.Err()
	}
}

// Phases returns the phase of every action not yet back to Idle.
func (o *Orchestrator) Phases() map[string]Phase {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make(map[string]Phase, len(o.phases))
	for k, v := range o.phases {
		out[k] = v
	}
	return out
}

// Close stops settling in-flight actions and closes Outcomes. It does not
// close the cache, submitter or watcher.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	o.cancel()
	close(o.outcomes)
	return nil
}

func (o *Orchestrator) begin(ctx context.Context, m core.Mutation, dispatch bool, hook func(Outcome)) (*txn.Handle, <-chan Outcome, error) {
	action := m.ActionKey()
	logger := o.logger.With("action", action, "kind", m.Kind().String())

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil, nil, ErrClosed
	}
	prev, busy := o.phases[action]
	if !busy {
		o.phases[action] = PhaseValidating
	}
	o.mu.Unlock()

	// Only the run that owns the action moves its phase.
	owns := !busy
	setPhase := func(p Phase) {
		if owns {
			o.setPhase(action, p)
		}
	}

	if err := m.Validate(); err != nil {
		setPhase(PhaseIdle)
		logger.Debug("validation failed", "error", err)
		return nil, nil, err
	}
	if _, ok := o.identity.Address(); !ok {
		setPhase(PhaseIdle)
		return nil, nil, core.ErrNotConnected
	}

	setPhase(PhaseSubmitting)
	h, err := o.submitter.Submit(ctx, action, m)
	if err != nil {
		if errors.Is(err, core.ErrActionInFlight) {
			logger.Debug("action already in flight", "phase", prev.String())
		}
		setPhase(PhaseIdle)
		return h, nil, err
	}

	done := make(chan Outcome, 1)
	o.watch(h, m, logger, owns, func(out Outcome) {
		if hook != nil {
			hook(out)
		}
		done <- out
		if dispatch {
			o.deliver(out, logger)
		}
	})
	return h, done, nil
}

// watch settles h in the background.
func (o *Orchestrator) watch(h *txn.Handle, m core.Mutation, logger *slog.Logger, owns bool, settled func(Outcome)) {
	if owns {
		o.setPhase(h.Action, PhaseWatching)
	}
	lifecycle.Go(o.ctx, func(ctx context.Context) error {
		out := o.settle(ctx, h, m, logger)
		if owns {
			o.setPhase(h.Action, PhaseSettled)
			o.setPhase(h.Action, PhaseIdle)
		}
		settled(out)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("settle panic", "error", err)
	}))
}

func (o *Orchestrator) settle(ctx context.Context, h *txn.Handle, m core.Mutation, logger *slog.Logger) Outcome {
	out := Outcome{Action: h.Action, Kind: m.Kind(), Handle: h}

	var last txn.Update
	for u := range o.watcher.Watch(ctx, h) {
		logger.Debug("transaction update", "status", u.Status.String(), "hash", h.Hash().Hex())
		last = u
	}
	out.Update = last

	switch last.Status {
	case txn.StatusConfirmed:
		keys, patterns := o.settledKeys(m, h.From)
		o.cache.Invalidate(keys...)
		for _, p := range patterns {
			touched, err := o.cache.InvalidatePattern(p)
			if err != nil {
				logger.Error("invalidate pattern", "pattern", p, "error", err)
				continue
			}
			keys = append(keys, touched...)
		}
		out.Invalidated = keys
		o.count(true)
		logger.Info("action confirmed", "hash", h.Hash().Hex(), "invalidated", len(keys))

	case txn.StatusFailed:
		out.Err = last.Err
		if out.Err == nil {
			out.Err = errors.New(last.Reason.String())
		}
		o.count(false)
		logger.Info("action failed", "status", last.Reason.String(), "error", out.Err)

	default:
		out.Err = ErrClosed
	}
	return out
}

func (o *Orchestrator) deliver(out Outcome, logger *slog.Logger) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	select {
	case o.outcomes <- out:
	default:
		logger.Warn("outcome dropped, consumer lagging")
	}
}

func (o *Orchestrator) setPhase(action string, p Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if p == PhaseIdle {
		delete(o.phases, action)
		return
	}
	o.phases[action] = p
}

func (o *Orchestrator) count(confirmed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if confirmed {
		o.confirmed++
	} else {
		o.failed++
	}
}

func (o *Orchestrator) account() common.Address {
	addr, _ := o.identity.Address()
	return addr
}
