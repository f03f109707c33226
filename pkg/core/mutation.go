package core

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind enumerates the mutating contract calls.
type Kind int

const (
	KindCreate Kind = iota
	KindUpdate
	KindDelete
	KindToggleVisibility
	KindTogglePin
	KindTip
)

// String returns the kind as it appears in action keys and logs.
func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	case KindToggleVisibility:
		return "toggleVisibility"
	case KindTogglePin:
		return "togglePin"
	case KindTip:
		return "tip"
	default:
		return "*unknown*"
	}
}

// Mutation is one of Create, Update, Delete, ToggleVisibility, TogglePin or Tip.
// The set is closed: the unexported method keeps other packages from adding kinds.
type Mutation interface {
	Kind() Kind
	// ActionKey names the logical UI action; repeated submissions of the same
	// key are suppressed while one is in flight.
	ActionKey() string
	// Validate checks the argument shape without touching the network.
	Validate() error
	// Send dispatches the call through w.
	Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error)

	mutation()
}

// Create composes a new note.
type Create struct {
	Title    string `validate:"notblank"`
	Content  string `validate:"notblank"`
	IsPublic bool
}

// Update rewrites the title and content of an existing note.
type Update struct {
	Note    NoteRef `validate:"-"`
	Title   string  `validate:"notblank"`
	Content string  `validate:"notblank"`
}

// Delete removes a note.
type Delete struct {
	Note NoteRef `validate:"-"`
}

// ToggleVisibility flips a note between public and private.
type ToggleVisibility struct {
	Note NoteRef `validate:"-"`
}

// TogglePin flips the pinned flag of a note.
type TogglePin struct {
	Note NoteRef `validate:"-"`
}

// Tip pays the author of a note.
type Tip struct {
	Note   NoteRef  `validate:"-"`
	Amount *big.Int `validate:"-"` // Wei, strictly positive
}

func (Create) Kind() Kind           { return KindCreate }
func (Update) Kind() Kind           { return KindUpdate }
func (Delete) Kind() Kind           { return KindDelete }
func (ToggleVisibility) Kind() Kind { return KindToggleVisibility }
func (TogglePin) Kind() Kind        { return KindTogglePin }
func (Tip) Kind() Kind              { return KindTip }

func (Create) mutation()           {}
func (Update) mutation()           {}
func (Delete) mutation()           {}
func (ToggleVisibility) mutation() {}
func (TogglePin) mutation()        {}
func (Tip) mutation()              {}

// The create form is a single action regardless of what it contains.
func (Create) ActionKey() string { return KindCreate.String() }

func (m Update) ActionKey() string           { return noteAction(KindUpdate, m.Note.ID) }
func (m Delete) ActionKey() string           { return noteAction(KindDelete, m.Note.ID) }
func (m ToggleVisibility) ActionKey() string { return noteAction(KindToggleVisibility, m.Note.ID) }
func (m TogglePin) ActionKey() string        { return noteAction(KindTogglePin, m.Note.ID) }
func (m Tip) ActionKey() string              { return noteAction(KindTip, m.Note.ID) }

func noteAction(k Kind, id uint64) string {
	return fmt.Sprintf("%s:%d", k, id)
}

func (m Create) Validate() error           { return validateStruct(m) }
func (m Delete) Validate() error           { return ValidateNoteRef(m.Note) }
func (m ToggleVisibility) Validate() error { return ValidateNoteRef(m.Note) }
func (m TogglePin) Validate() error        { return ValidateNoteRef(m.Note) }

func (m Update) Validate() error {
	if err := ValidateNoteRef(m.Note); err != nil {
		return err
	}
	return validateStruct(m)
}

func (m Tip) Validate() error {
	if err := ValidateNoteRef(m.Note); err != nil {
		return err
	}
	return ValidateTipAmount(m.Amount)
}

func (m Create) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	return w.CreateNote(ctx, opts, m.Title, m.Content, m.IsPublic)
}

func (m Update) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	return w.UpdateNote(ctx, opts, m.Note.ID, m.Title, m.Content)
}

func (m Delete) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	return w.DeleteNote(ctx, opts, m.Note.ID)
}

func (m ToggleVisibility) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	return w.ToggleNoteVisibility(ctx, opts, m.Note.ID)
}

func (m TogglePin) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	return w.TogglePinNote(ctx, opts, m.Note.ID)
}

func (m Tip) Send(ctx context.Context, w Writer, opts TxOpts) (common.Hash, error) {
	opts.Value = new(big.Int).Set(m.Amount)
	return w.TipNote(ctx, opts, m.Note.ID)
}

// Target returns the note a mutation operates on. Create has none.
func Target(m Mutation) (NoteRef, bool) {
	switch v := m.(type) {
	case Update:
		return v.Note, true
	case Delete:
		return v.Note, true
	case ToggleVisibility:
		return v.Note, true
	case TogglePin:
		return v.Note, true
	case Tip:
		return v.Note, true
	default:
		return NoteRef{}, false
	}
}
