package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// TxOpts carries the sender and the attached payment of a mutating call.
type TxOpts struct {
	From  common.Address
	Value *big.Int // Wei; only tipNote accepts a payment
}

// Reader defines the read-only calls of the notes contract.
type Reader interface {
	GetUserNotes(ctx context.Context, user common.Address) ([]Note, error)
	GetPublicNotes(ctx context.Context) ([]Note, error)
	GetPinnedNotes(ctx context.Context, user common.Address) ([]Note, error)
	GetUserNoteCount(ctx context.Context, user common.Address) (uint64, error)
}

// Writer defines the mutating calls of the notes contract.
// Each call signs and broadcasts a transaction and returns its hash; it does
// not wait for inclusion. A signer decline is reported as ErrSubmissionRejected.
type Writer interface {
	CreateNote(ctx context.Context, opts TxOpts, title, content string, isPublic bool) (common.Hash, error)
	UpdateNote(ctx context.Context, opts TxOpts, id uint64, title, content string) (common.Hash, error)
	DeleteNote(ctx context.Context, opts TxOpts, id uint64) (common.Hash, error)
	ToggleNoteVisibility(ctx context.Context, opts TxOpts, id uint64) (common.Hash, error)
	TogglePinNote(ctx context.Context, opts TxOpts, id uint64) (common.Hash, error)
	TipNote(ctx context.Context, opts TxOpts, id uint64) (common.Hash, error)
}

// LookupState is where the node last saw a transaction.
type LookupState int

const (
	LookupUnknown LookupState = iota
	LookupPending
	LookupIncluded
	LookupDropped
)

// String returns the name of the lookup state.
func (s LookupState) String() string {
	switch s {
	case LookupUnknown:
		return "Unknown"
	case LookupPending:
		return "Pending"
	case LookupIncluded:
		return "Included"
	case LookupDropped:
		return "Dropped"
	default:
		return "*Unknown*"
	}
}

// ReceiptStatus is the execution result recorded by the ledger.
type ReceiptStatus int

const (
	ReceiptSuccessful ReceiptStatus = iota
	ReceiptReverted
)

// Receipt is the ledger's record of an included transaction.
type Receipt struct {
	TxHash       common.Hash
	Status       ReceiptStatus
	BlockNumber  uint64
	NoteID       uint64 // Return value of createNote; zero otherwise
	RevertReason string
	Logs         []NoteCreated
}

// TxLookup is a point-in-time view of a transaction's progress.
type TxLookup struct {
	State         LookupState
	Receipt       *Receipt // Set once Included
	Confirmations uint64   // Blocks on top of (and including) the receipt's block
}

// Network reports transaction progress.
type Network interface {
	Lookup(ctx context.Context, hash common.Hash) (TxLookup, error)
}

// Ledger is the full contract surface the engine needs.
type Ledger interface {
	Reader
	Writer
	Network
}

// NoteCreatedSource is implemented by ledgers that can stream NoteCreated events.
type NoteCreatedSource interface {
	SubscribeNoteCreated(ch chan<- NoteCreated) event.Subscription
}

// Identity supplies the connected account, if any.
type Identity interface {
	Address() (common.Address, bool)
}
