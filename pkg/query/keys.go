package query

import (
	"github.com/ethereum/go-ethereum/common"
)

// Op names a ledger read operation.
type Op string

const (
	OpUserNotes     Op = "UserNotes"
	OpPublicNotes   Op = "PublicNotes"
	OpPinnedNotes   Op = "PinnedNotes"
	OpUserNoteCount Op = "UserNoteCount"
)

// Key identifies one read view: an operation plus its arguments.
// Distinct arguments are independent entries.
type Key struct {
	Op   Op
	User common.Address
}

func UserNotes(user common.Address) Key {
	return Key{Op: OpUserNotes, User: user}
}

func PublicNotes() Key {
	return Key{Op: OpPublicNotes}
}

func PinnedNotes(user common.Address) Key {
	return Key{Op: OpPinnedNotes, User: user}
}

func UserNoteCount(user common.Address) Key {
	return Key{Op: OpUserNoteCount, User: user}
}

// UserScoped reports whether the key takes an address argument.
func (k Key) UserScoped() bool {
	return k.Op != OpPublicNotes
}

// Disabled reports whether the key is user-scoped but has no user.
// Disabled keys never fetch.
func (k Key) Disabled() bool {
	return k.UserScoped() && k.User == (common.Address{})
}

// String renders the key as a slash path, e.g. "UserNotes/0xAbC...".
// Patterns passed to Subscribe and InvalidatePattern match against it.
func (k Key) String() string {
	if !k.UserScoped() {
		return string(k.Op)
	}
	return string(k.Op) + "/" + k.User.Hex()
}
