package txn

import (
	"context"
	"sync"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// Submitter turns mutations into ledger transactions, one handle each.
type Submitter struct {
	writer   core.Writer
	identity core.Identity
	tracker  *Watcher
	cfg      config

	mu       sync.Mutex
	inFlight map[string]*Handle
}

// NewSubmitter creates a Submitter sending through w as the account id
// reports. Every accepted handle is handed to tracker for resolution.
func NewSubmitter(w core.Writer, id core.Identity, tracker *Watcher, opts ...Option) *Submitter {
	return &Submitter{
		writer:   w,
		identity: id,
		tracker:  tracker,
		cfg:      newConfig(opts),
		inFlight: make(map[string]*Handle),
	}
}

// Submit validates m and sends it. An empty action defaults to
// m.ActionKey().
//
// Validation failures and a missing account return an error and no handle.
// While a handle for the same action is Pending or Confirming, Submit
// returns that handle with ErrActionInFlight and sends nothing.
//
// Failures during the send itself do not return an error: the handle comes
// back already Failed, Rejected when the signer declined and Network
// otherwise.
func (s *Submitter) Submit(ctx context.Context, action string, m core.Mutation) (*Handle, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	from, ok := s.identity.Address()
	if !ok {
		return nil, core.ErrNotConnected
	}
	if action == "" {
		action = m.ActionKey()
	}

	s.mu.Lock()
	if h, ok := s.inFlight[action]; ok && !h.Status().Terminal() {
		s.mu.Unlock()
		s.cfg.logger.Debug("duplicate submission suppressed", "action", action, "handle", h.ID.String())
		return h, core.ErrActionInFlight
	}
	h := newHandle(action, m, from)
	s.inFlight[action] = h
	s.mu.Unlock()

	logger := s.cfg.logger.With("action", action, "kind", m.Kind().String(), "handle", h.ID.String())

	hash, err := m.Send(ctx, s.writer, core.TxOpts{From: from})
	if err != nil {
		reason := core.Classify(err)
		logger.Info("submission failed", "status", reason.String(), "error", err)
		h.fail(reason, err)
		s.release(action, h)
		return h, nil
	}

	h.sent(hash)
	logger.Debug("transaction sent", "hash", hash.Hex())

	s.tracker.Track(h)
	go func() {
		select {
		case <-h.Done():
			s.release(action, h)
		case <-s.tracker.ctx.Done():
		}
	}()
	return h, nil
}

// InFlight lists the actions with an unresolved handle.
func (s *Submitter) InFlight() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	actions := make([]string, 0, len(s.inFlight))
	for action, h := range s.inFlight {
		if !h.Status().Terminal() {
			actions = append(actions, action)
		}
	}
	return actions
}

func (s *Submitter) release(action string, h *Handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[action] == h {
		delete(s.inFlight, action)
	}
}
