package sqlite_test

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JPrieve/web3-notes/pkg/adapters/devnet"
	"github.com/JPrieve/web3-notes/pkg/adapters/sqlite"
	"github.com/JPrieve/web3-notes/pkg/core"
)

var author = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(sqlite.InMemory)
	require.NoError(t, err)
	defer s.Close()

	id, err := s.Insert(ctx, core.Note{Author: author, Title: "a", Content: "b", CreatedAt: 1, UpdatedAt: 1, Version: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	n, ok, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, author, n.Author)
	assert.Equal(t, 0, n.TipsReceived.Sign())

	n.Title = "edited"
	n.TipsReceived = new(big.Int).Exp(big.NewInt(10), big.NewInt(30), nil)
	require.NoError(t, s.Put(ctx, n))

	n, _, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "edited", n.Title)
	assert.Equal(t, "1000000000000000000000000000000", n.TipsReceived.String())

	require.NoError(t, s.Delete(ctx, id))
	assert.ErrorIs(t, s.Delete(ctx, id), core.ErrNoteNotFound)
	assert.ErrorIs(t, s.Put(ctx, n), core.ErrNoteNotFound)

	_, ok, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)

	next, err := s.Insert(ctx, core.Note{Author: author, Title: "c", Content: "d", Version: 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next, "ids must not be reused after delete")
}

func TestStore_BacksChainAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "devnet.db")

	s, err := sqlite.Open(path)
	require.NoError(t, err)
	chain := devnet.New(devnet.WithStore(s), devnet.WithAutoMine(true))
	_, err = chain.CreateNote(ctx, core.TxOpts{From: author}, "persisted", "body", true)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()
	chain = devnet.New(devnet.WithStore(s))

	notes, err := chain.GetPublicNotes(ctx)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "persisted", notes[0].Title)
	assert.Equal(t, uint64(1), notes[0].Version)
}
