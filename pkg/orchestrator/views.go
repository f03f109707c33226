package orchestrator

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/JPrieve/web3-notes/pkg/query"
)

// Views names the read views of the connected account. Without an account
// the user-scoped keys carry the zero address and read as disabled.
type Views struct {
	UserNotes     query.Key
	PublicNotes   query.Key
	PinnedNotes   query.Key
	UserNoteCount query.Key
}

// Views returns the keys for the account connected right now.
func (o *Orchestrator) Views() Views {
	addr := o.account()
	return Views{
		UserNotes:     query.UserNotes(addr),
		PublicNotes:   query.PublicNotes(),
		PinnedNotes:   query.PinnedNotes(addr),
		UserNoteCount: query.UserNoteCount(addr),
	}
}

// Cache returns the read cache.
func (o *Orchestrator) Cache() *query.Cache {
	return o.cache
}

// Summary describes the connected account.
type Summary struct {
	Address   common.Address
	Connected bool
	Notes     uint64
	Pinned    int
}

// Summary reads the note and pinned counts of the connected account,
// fetching them when the cache has no fresh value.
func (o *Orchestrator) Summary(ctx context.Context) (Summary, error) {
	addr, ok := o.identity.Address()
	if !ok {
		return Summary{}, nil
	}
	v := o.Views()

	count, err := o.cache.Fetch(ctx, v.UserNoteCount)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: note count: %w", err)
	}
	pinned, err := o.cache.Fetch(ctx, v.PinnedNotes)
	if err != nil {
		return Summary{}, fmt.Errorf("summary: pinned notes: %w", err)
	}

	return Summary{
		Address:   addr,
		Connected: true,
		Notes:     count.Count(),
		Pinned:    len(pinned.Notes()),
	}, nil
}
