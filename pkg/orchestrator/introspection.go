package orchestrator

import (
	"github.com/aretw0/introspection"
)

// OrchestratorState exposes internal state for observability.
type OrchestratorState struct {
	Account   string            `json:"account,omitempty"`
	Phases    map[string]string `json:"phases,omitempty"`
	Form      string            `json:"form"`
	Confirmed int               `json:"confirmed"`
	Failed    int               `json:"failed"`
	Closed    bool              `json:"closed"`
}

// State implements introspection.Introspectable.
func (o *Orchestrator) State() any {
	st := OrchestratorState{Form: o.form.State().String()}
	if addr, ok := o.identity.Address(); ok {
		st.Account = addr.Hex()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.phases) > 0 {
		st.Phases = make(map[string]string, len(o.phases))
		for action, p := range o.phases {
			st.Phases[action] = p.String()
		}
	}
	st.Confirmed = o.confirmed
	st.Failed = o.failed
	st.Closed = o.closed
	return st
}

// ComponentType implements introspection.Component.
func (o *Orchestrator) ComponentType() string {
	return "orchestrator"
}

var _ introspection.Introspectable = (*Orchestrator)(nil)
var _ introspection.Component = (*Orchestrator)(nil)
