package txn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// Watcher follows submitted transactions until they resolve.
//
// Every tracked handle is polled in the background whether or not anyone is
// watching it, so abandoning a Watch never leaves a handle unresolved.
// There is no timeout on Confirming and nothing is retried.
type Watcher struct {
	network core.Network
	cfg     config
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	tracked map[uuid.UUID]*Handle
	closed  bool
}

// NewWatcher creates a Watcher that looks transactions up on n.
func NewWatcher(n core.Network, opts ...Option) *Watcher {
	cfg := newConfig(opts)
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		network: n,
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.lookupRate, cfg.lookupBurst),
		ctx:     ctx,
		cancel:  cancel,
		tracked: make(map[uuid.UUID]*Handle),
	}
}

// Confirmations is the inclusion depth required for Confirmed.
func (w *Watcher) Confirmations() uint64 {
	return w.cfg.confirmations
}

// Track starts background resolution of h. Terminal handles and handles
// already tracked are ignored.
func (w *Watcher) Track(h *Handle) {
	if h.Status().Terminal() {
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	if _, ok := w.tracked[h.ID]; ok {
		w.mu.Unlock()
		return
	}
	w.tracked[h.ID] = h
	w.mu.Unlock()

	logger := w.cfg.logger.With("action", h.Action, "hash", h.Hash().Hex())
	lifecycle.Go(w.ctx, func(ctx context.Context) error {
		defer w.untrack(h)
		w.follow(ctx, h, logger)
		return nil
	}, lifecycle.WithErrorHandler(func(err error) {
		logger.Error("tracker panic", "error", err)
	}))
}

// Watch streams the updates of h: every transition it has made so far, then
// each new one, ending with exactly one terminal update. The channel closes
// after the terminal update or when ctx is done; cancelling ctx does not
// affect the handle itself.
func (w *Watcher) Watch(ctx context.Context, h *Handle) <-chan Update {
	out := make(chan Update, 4)
	go func() {
		defer close(out)
		seen := 0
		for {
			updates, changed := h.since(seen)
			for _, u := range updates {
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
				seen++
				if u.Status.Terminal() {
					return
				}
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Close stops every background tracker. Handles that have not resolved keep
// their last status.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.cancel()
	return nil
}

func (w *Watcher) untrack(h *Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.tracked, h.ID)
}

func (w *Watcher) follow(ctx context.Context, h *Handle, logger *slog.Logger) {
	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	for {
		if err := w.limiter.Wait(ctx); err != nil {
			return
		}
		if w.poll(ctx, h, logger) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll performs one lookup and applies it to h. It returns true once h is
// terminal or the watcher is shutting down.
func (w *Watcher) poll(ctx context.Context, h *Handle, logger *slog.Logger) bool {
	hash := h.Hash()
	lookup, err := w.network.Lookup(ctx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		logger.Warn("lookup failed", "error", err)
		h.fail(core.FailureNetwork, fmt.Errorf("lookup %s: %w", hash.Hex(), err))
		return true
	}

	switch lookup.State {
	case core.LookupUnknown, core.LookupPending:
		return false

	case core.LookupDropped:
		logger.Info("transaction dropped")
		h.fail(core.FailureDropped, fmt.Errorf("%w: %s", core.ErrDropped, hash.Hex()))
		return true

	case core.LookupIncluded:
		r := lookup.Receipt
		if r == nil {
			return false
		}
		if r.Status == core.ReceiptReverted {
			logger.Info("transaction reverted", "reason", r.RevertReason)
			h.fail(core.FailureReverted, &core.RevertedError{Hash: hash, Reason: r.RevertReason})
			return true
		}

		if h.transition(Update{Status: StatusConfirming, Confirmations: lookup.Confirmations, Receipt: r}) {
			logger.Debug("transaction included", "block", r.BlockNumber)
		} else {
			h.progress(lookup.Confirmations)
		}
		if lookup.Confirmations < w.cfg.confirmations {
			return false
		}

		h.transition(Update{
			Status:        StatusConfirmed,
			Confirmations: lookup.Confirmations,
			NoteID:        r.NoteID,
			Receipt:       r,
		})
		logger.Debug("transaction confirmed", "confirmations", lookup.Confirmations)
		return true
	}
	return false
}
