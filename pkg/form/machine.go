// Package form holds the editable draft behind the create and edit screens.
//
// The draft is a detached copy: editing it never touches cached notes. A
// Machine moves through Idle, Creating or Editing, Submitting, and back to
// Idle on success or to Error on failure with the draft intact.
package form

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/JPrieve/web3-notes/pkg/core"
)

var (
	// ErrBusy is returned for edits and submissions while Submitting.
	ErrBusy = errors.New("form is submitting")
	// ErrNoDraft is returned when there is no draft to act on.
	ErrNoDraft = errors.New("no draft open")
	// ErrNotSubmitting is returned by Settle outside Submitting.
	ErrNotSubmitting = errors.New("form is not submitting")
	// ErrVisibilityFixed is returned by SetPublic while editing; visibility
	// has its own toggle.
	ErrVisibilityFixed = errors.New("visibility cannot be changed while editing")
)

// State is the position of the form.
type State int

const (
	StateIdle State = iota
	StateCreating
	StateEditing
	StateSubmitting
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreating:
		return "creating"
	case StateEditing:
		return "editing"
	case StateSubmitting:
		return "submitting"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Draft is the text being composed.
type Draft struct {
	Title    string
	Content  string
	IsPublic bool
}

// View is a snapshot of the machine.
type View struct {
	State State
	// Mode is Creating or Editing while a draft is open, Idle otherwise.
	Mode    State
	Draft   Draft
	Note    core.NoteRef
	Message string
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger for the machine.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// Machine is safe for concurrent use.
type Machine struct {
	mu      sync.Mutex
	state   State
	mode    State
	draft   Draft
	note    core.NoteRef
	message string
	logger  *slog.Logger
}

// New creates an idle Machine.
func New(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.DiscardHandler)
	}
	return m
}

// View returns the current snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return View{State: m.state, Mode: m.mode, Draft: m.draft, Note: m.note, Message: m.message}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// StartCreate opens an empty private draft, discarding any open one.
func (m *Machine) StartCreate() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return ErrBusy
	}
	m.open(StateCreating, core.NoteRef{}, Draft{})
	return nil
}

// Edit opens a draft copied from n.
func (m *Machine) Edit(n core.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return ErrBusy
	}
	m.open(StateEditing, n.Ref(), Draft{Title: n.Title, Content: n.Content, IsPublic: n.IsPublic})
	return nil
}

func (m *Machine) SetTitle(title string) error {
	return m.change(func(d *Draft) error {
		d.Title = title
		return nil
	})
}

func (m *Machine) SetContent(content string) error {
	return m.change(func(d *Draft) error {
		d.Content = content
		return nil
	})
}

// SetPublic sets the visibility of a new note.
func (m *Machine) SetPublic(public bool) error {
	return m.change(func(d *Draft) error {
		if m.mode != StateCreating {
			return ErrVisibilityFixed
		}
		d.IsPublic = public
		return nil
	})
}

// Cancel drops the draft without contacting the ledger.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return ErrBusy
	}
	m.reset()
	return nil
}

// Submission builds the mutation for the current draft without changing
// state.
func (m *Machine) Submission() (core.Mutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return nil, ErrBusy
	}
	return m.mutation()
}

// BeginSubmit validates the draft and enters Submitting. A validation
// failure moves to Error and keeps the draft.
func (m *Machine) BeginSubmit() (core.Mutation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSubmitting {
		return nil, ErrBusy
	}

	mut, err := m.mutation()
	if err != nil {
		if core.IsValidation(err) {
			m.state = StateError
			m.message = err.Error()
		}
		return nil, err
	}
	m.state = StateSubmitting
	m.message = ""
	m.logger.Debug("form submitting", "mode", m.mode.String(), "action", mut.ActionKey())
	return mut, nil
}

// Settle ends a submission. A nil err means the mutation was confirmed and
// the draft is cleared; otherwise the machine moves to Error with the draft
// kept for correction or retry.
func (m *Machine) Settle(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateSubmitting {
		return ErrNotSubmitting
	}
	if err == nil {
		m.reset()
		return nil
	}
	m.state = StateError
	m.message = err.Error()
	m.logger.Debug("form submission failed", "mode", m.mode.String(), "error", err)
	return nil
}

func (m *Machine) open(mode State, note core.NoteRef, d Draft) {
	m.state = mode
	m.mode = mode
	m.note = note
	m.draft = d
	m.message = ""
}

func (m *Machine) reset() {
	m.state = StateIdle
	m.mode = StateIdle
	m.note = core.NoteRef{}
	m.draft = Draft{}
	m.message = ""
}

// change applies fn to the open draft. Editing after an error returns the
// machine to its draft mode.
func (m *Machine) change(fn func(*Draft) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateSubmitting:
		return ErrBusy
	case StateIdle:
		return ErrNoDraft
	}
	if err := fn(&m.draft); err != nil {
		return err
	}
	m.state = m.mode
	m.message = ""
	return nil
}

func (m *Machine) mutation() (core.Mutation, error) {
	var mut core.Mutation
	switch m.mode {
	case StateCreating:
		mut = core.Create{Title: m.draft.Title, Content: m.draft.Content, IsPublic: m.draft.IsPublic}
	case StateEditing:
		mut = core.Update{Note: m.note, Title: m.draft.Title, Content: m.draft.Content}
	default:
		return nil, ErrNoDraft
	}
	if err := mut.Validate(); err != nil {
		return nil, fmt.Errorf("invalid draft: %w", err)
	}
	return mut, nil
}
