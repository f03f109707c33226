package core

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Common errors.
var (
	ErrSubmissionRejected = errors.New("submission rejected by signer")
	ErrNotConnected       = errors.New("no account connected")
	ErrActionInFlight     = errors.New("action already in flight")
	ErrDropped            = errors.New("transaction dropped before inclusion")
	ErrNoteNotFound       = errors.New("note not found")
	ErrNotAuthor          = errors.New("caller is not the note author")
)

// ValidationError is returned before anything reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NetworkError wraps a transport failure while talking to the node.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Revert reasons reported by the notes contract.
const (
	RevertNoteNotFound = "Note does not exist"
	RevertNotAuthor    = "Only the author can modify this note"
	RevertEmptyTip     = "Tip amount must be greater than 0"
)

// RevertedError means the ledger executed and refused the call.
type RevertedError struct {
	Hash   common.Hash
	Reason string
}

func (e *RevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted: %s", e.Hash.Hex(), e.Reason)
}

// Unwrap exposes the sentinel matching a known revert reason, so callers
// can test for ErrNotAuthor or ErrNoteNotFound with errors.Is.
func (e *RevertedError) Unwrap() error {
	switch e.Reason {
	case RevertNotAuthor:
		return ErrNotAuthor
	case RevertNoteNotFound:
		return ErrNoteNotFound
	default:
		return nil
	}
}

// FailureReason classifies a terminal Failed state.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureRejected
	FailureReverted
	FailureDropped
	FailureNetwork
)

// String returns the name of the reason as shown in logs and output.
func (r FailureReason) String() string {
	switch r {
	case FailureNone:
		return "None"
	case FailureRejected:
		return "Rejected"
	case FailureReverted:
		return "Reverted"
	case FailureDropped:
		return "Dropped"
	case FailureNetwork:
		return "Network"
	default:
		return "*Unknown*"
	}
}

// MarshalText encodes the reason by name.
func (r FailureReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Classify maps an error surfaced by a ledger call to its failure reason.
// Unknown errors are treated as transport failures.
func Classify(err error) FailureReason {
	var reverted *RevertedError
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrSubmissionRejected):
		return FailureRejected
	case errors.As(err, &reverted):
		return FailureReverted
	case errors.Is(err, ErrDropped):
		return FailureDropped
	default:
		return FailureNetwork
	}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
