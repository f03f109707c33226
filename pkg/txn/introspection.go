package txn

import (
	"sort"

	"github.com/aretw0/introspection"
)

// WatcherState exposes internal state for observability.
type WatcherState struct {
	Tracked       []string `json:"tracked,omitempty"`
	Confirmations uint64   `json:"confirmations"`
	PollInterval  string   `json:"poll_interval"`
	Closed        bool     `json:"closed"`
}

// State implements introspection.Introspectable.
func (w *Watcher) State() any {
	w.mu.Lock()
	defer w.mu.Unlock()

	tracked := make([]string, 0, len(w.tracked))
	for _, h := range w.tracked {
		tracked = append(tracked, h.Action)
	}
	sort.Strings(tracked)

	return WatcherState{
		Tracked:       tracked,
		Confirmations: w.cfg.confirmations,
		PollInterval:  w.cfg.pollInterval.String(),
		Closed:        w.closed,
	}
}

// ComponentType implements introspection.Component.
func (w *Watcher) ComponentType() string {
	return "confirmation-watcher"
}

var _ introspection.Introspectable = (*Watcher)(nil)
var _ introspection.Component = (*Watcher)(nil)

// SubmitterState exposes internal state for observability.
type SubmitterState struct {
	Account  string   `json:"account,omitempty"`
	InFlight []string `json:"in_flight,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Submitter) State() any {
	st := SubmitterState{InFlight: s.InFlight()}
	sort.Strings(st.InFlight)
	if addr, ok := s.identity.Address(); ok {
		st.Account = addr.Hex()
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *Submitter) ComponentType() string {
	return "transaction-submitter"
}

var _ introspection.Introspectable = (*Submitter)(nil)
var _ introspection.Component = (*Submitter)(nil)
