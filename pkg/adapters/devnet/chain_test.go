package devnet_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/JPrieve/web3-notes/pkg/adapters/devnet"
	"github.com/JPrieve/web3-notes/pkg/core"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

func mustCreate(t *testing.T, c *devnet.Chain, from common.Address, title string, public bool) uint64 {
	t.Helper()
	ctx := context.Background()
	hash, err := c.CreateNote(ctx, core.TxOpts{From: from}, title, "body", public)
	require.NoError(t, err)
	c.Mine(ctx)
	lookup, err := c.Lookup(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, core.LookupIncluded, lookup.State)
	require.Equal(t, core.ReceiptSuccessful, lookup.Receipt.Status)
	return lookup.Receipt.NoteID
}

func TestChain_CreateAndRead(t *testing.T) {
	ctx := context.Background()
	c := devnet.New()

	hash, err := c.CreateNote(ctx, core.TxOpts{From: alice}, "Test", "Hello", false)
	require.NoError(t, err)

	lookup, err := c.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, core.LookupPending, lookup.State)
	assert.Nil(t, lookup.Receipt)

	c.Mine(ctx)

	lookup, err = c.Lookup(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, core.LookupIncluded, lookup.State)
	assert.Equal(t, uint64(1), lookup.Confirmations)
	assert.Equal(t, uint64(1), lookup.Receipt.NoteID)
	require.Len(t, lookup.Receipt.Logs, 1)
	assert.Equal(t, core.NoteCreated{ID: 1, Author: alice, Title: "Test"}, lookup.Receipt.Logs[0])

	notes, err := c.GetUserNotes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, uint64(1), n.Version)
	assert.False(t, n.IsPublic)
	assert.Equal(t, 0, n.TipsReceived.Sign())
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	public, err := c.GetPublicNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)

	count, err := c.GetUserNoteCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	c.Mine(ctx)
	lookup, err = c.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), lookup.Confirmations)
}

func TestChain_OwnershipRules(t *testing.T) {
	ctx := context.Background()
	c := devnet.New(devnet.WithAutoMine(true))
	id := mustCreate(t, c, alice, "mine", true)

	for name, send := range map[string]func() (common.Hash, error){
		"update": func() (common.Hash, error) {
			return c.UpdateNote(ctx, core.TxOpts{From: bob}, id, "x", "y")
		},
		"delete": func() (common.Hash, error) {
			return c.DeleteNote(ctx, core.TxOpts{From: bob}, id)
		},
		"visibility": func() (common.Hash, error) {
			return c.ToggleNoteVisibility(ctx, core.TxOpts{From: bob}, id)
		},
		"pin": func() (common.Hash, error) {
			return c.TogglePinNote(ctx, core.TxOpts{From: bob}, id)
		},
	} {
		t.Run(name, func(t *testing.T) {
			hash, err := send()
			require.NoError(t, err)
			lookup, err := c.Lookup(ctx, hash)
			require.NoError(t, err)
			assert.Equal(t, core.ReceiptReverted, lookup.Receipt.Status)
			assert.NotEmpty(t, lookup.Receipt.RevertReason)
		})
	}

	// Anyone may tip, including the author.
	for _, from := range []common.Address{bob, alice} {
		hash, err := c.TipNote(ctx, core.TxOpts{From: from, Value: big.NewInt(10)}, id)
		require.NoError(t, err)
		lookup, err := c.Lookup(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, core.ReceiptSuccessful, lookup.Receipt.Status)
	}

	notes, err := c.GetUserNotes(ctx, alice)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "mine", notes[0].Title)
	assert.Equal(t, int64(20), notes[0].TipsReceived.Int64())
	assert.Equal(t, uint64(1), notes[0].Version)
}

func TestChain_DeleteNeverReusesIDs(t *testing.T) {
	ctx := context.Background()
	c := devnet.New(devnet.WithAutoMine(true))

	first := mustCreate(t, c, alice, "one", true)
	_, err := c.TogglePinNote(ctx, core.TxOpts{From: alice}, first)
	require.NoError(t, err)

	_, err = c.DeleteNote(ctx, core.TxOpts{From: alice}, first)
	require.NoError(t, err)

	second := mustCreate(t, c, alice, "two", false)
	assert.Greater(t, second, first)

	pinned, err := c.GetPinnedNotes(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, pinned)

	public, err := c.GetPublicNotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, public)

	count, err := c.GetUserNoteCount(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestChain_Faults(t *testing.T) {
	ctx := context.Background()

	t.Run("Offline", func(t *testing.T) {
		c := devnet.New()
		c.SetOffline(true)

		_, err := c.GetPublicNotes(ctx)
		var netErr *core.NetworkError
		require.ErrorAs(t, err, &netErr)
		assert.ErrorIs(t, err, devnet.ErrOffline)

		_, err = c.CreateNote(ctx, core.TxOpts{From: alice}, "a", "b", false)
		assert.ErrorAs(t, err, &netErr)

		c.SetOffline(false)
		_, err = c.GetPublicNotes(ctx)
		assert.NoError(t, err)
	})

	t.Run("SignerDeclines", func(t *testing.T) {
		c := devnet.New(devnet.WithSigner(func(opts core.TxOpts, kind core.Kind) error {
			return assert.AnError
		}))
		_, err := c.CreateNote(ctx, core.TxOpts{From: alice}, "a", "b", false)
		assert.ErrorIs(t, err, core.ErrSubmissionRejected)
		assert.Equal(t, uint64(0), c.Height())
	})

	t.Run("Dropped", func(t *testing.T) {
		c := devnet.New()
		hash, err := c.CreateNote(ctx, core.TxOpts{From: alice}, "a", "b", false)
		require.NoError(t, err)
		assert.True(t, c.Drop(hash))
		assert.False(t, c.Drop(hash))
		c.Mine(ctx)

		lookup, err := c.Lookup(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, core.LookupDropped, lookup.State)

		notes, err := c.GetUserNotes(ctx, alice)
		require.NoError(t, err)
		assert.Empty(t, notes)
	})

	t.Run("UnknownHash", func(t *testing.T) {
		c := devnet.New()
		lookup, err := c.Lookup(ctx, common.HexToHash("0xdead"))
		require.NoError(t, err)
		assert.Equal(t, core.LookupUnknown, lookup.State)
	})
}

func TestChain_NoteCreatedFeed(t *testing.T) {
	c := devnet.New(devnet.WithAutoMine(true))

	ch := make(chan core.NoteCreated, 4)
	sub := c.SubscribeNoteCreated(ch)
	defer sub.Unsubscribe()

	mustCreate(t, c, bob, "hello", true)

	select {
	case ev := <-ch:
		assert.Equal(t, bob, ev.Author)
		assert.Equal(t, "hello", ev.Title)
		assert.True(t, ev.IsPublic)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for NoteCreated")
	}
}

// TestChain_NoteInvariants drives random operation sequences against one note
// and checks the version, timestamp, tip and toggle invariants after each block.
func TestChain_NoteInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		now := time.Unix(1_700_000_000, 0)
		c := devnet.New(devnet.WithClock(func() time.Time { return now }))

		hash, err := c.CreateNote(ctx, core.TxOpts{From: alice}, "t", "c", false)
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		c.Mine(ctx)
		lookup, _ := c.Lookup(ctx, hash)
		id := lookup.Receipt.NoteID

		wantVersion := uint64(1)
		wantPinned, wantPublic := false, false
		lastTips := big.NewInt(0)

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			// The clock may stall or even step back; updatedAt must still hold.
			now = now.Add(time.Duration(rapid.IntRange(-3, 5).Draw(rt, "drift")) * time.Second)

			op := rapid.SampledFrom([]string{"update", "foreign-update", "visibility", "pin", "tip"}).Draw(rt, "op")
			var h common.Hash
			switch op {
			case "update":
				h, err = c.UpdateNote(ctx, core.TxOpts{From: alice}, id, "t2", "c2")
				wantVersion++
			case "foreign-update":
				h, err = c.UpdateNote(ctx, core.TxOpts{From: bob}, id, "evil", "evil")
			case "visibility":
				h, err = c.ToggleNoteVisibility(ctx, core.TxOpts{From: alice}, id)
				wantPublic = !wantPublic
			case "pin":
				h, err = c.TogglePinNote(ctx, core.TxOpts{From: alice}, id)
				wantPinned = !wantPinned
			case "tip":
				amount := rapid.Int64Range(1, 1_000_000).Draw(rt, "amount")
				h, err = c.TipNote(ctx, core.TxOpts{From: bob, Value: big.NewInt(amount)}, id)
			}
			if err != nil {
				rt.Fatalf("%s: %v", op, err)
			}
			c.Mine(ctx)

			lookup, err := c.Lookup(ctx, h)
			if err != nil {
				rt.Fatalf("lookup: %v", err)
			}
			if op == "foreign-update" && lookup.Receipt.Status != core.ReceiptReverted {
				rt.Fatalf("non-author update must revert")
			}

			notes, err := c.GetUserNotes(ctx, alice)
			if err != nil || len(notes) != 1 {
				rt.Fatalf("expected one note, got %d (%v)", len(notes), err)
			}
			n := notes[0]
			if n.Version != wantVersion {
				rt.Fatalf("version = %d, want %d after %s", n.Version, wantVersion, op)
			}
			if n.UpdatedAt < n.CreatedAt {
				rt.Fatalf("updatedAt %d < createdAt %d", n.UpdatedAt, n.CreatedAt)
			}
			if n.TipsReceived.Cmp(lastTips) < 0 {
				rt.Fatalf("tips decreased from %s to %s", lastTips, n.TipsReceived)
			}
			if n.IsPinned != wantPinned || n.IsPublic != wantPublic {
				rt.Fatalf("flags pinned=%v public=%v, want %v %v", n.IsPinned, n.IsPublic, wantPinned, wantPublic)
			}
			lastTips = n.TipsReceived
		}
	})
}
