package orchestrator_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"pgregory.net/rapid"

	"github.com/JPrieve/web3-notes/pkg/adapters/devnet"
	"github.com/JPrieve/web3-notes/pkg/adapters/identity"
	"github.com/JPrieve/web3-notes/pkg/core"
	"github.com/JPrieve/web3-notes/pkg/form"
	"github.com/JPrieve/web3-notes/pkg/orchestrator"
	"github.com/JPrieve/web3-notes/pkg/query"
	"github.com/JPrieve/web3-notes/pkg/txn"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
)

type rig struct {
	chain   *devnet.Chain
	account *identity.Static
	cache   *query.Cache
	watcher *txn.Watcher
	orch    *orchestrator.Orchestrator
}

func newRig(t *testing.T, chainOpts ...devnet.Option) *rig {
	t.Helper()
	r := buildRig(chainOpts...)
	t.Cleanup(r.close)
	return r
}

func buildRig(chainOpts ...devnet.Option) *rig {
	chain := devnet.New(chainOpts...)
	account := identity.NewStatic(alice)
	cache := query.New(chain)
	opts := []txn.Option{txn.WithPollInterval(time.Millisecond), txn.WithLookupRate(rate.Inf, 1)}
	w := txn.NewWatcher(chain, opts...)
	sub := txn.NewSubmitter(chain, account, w, opts...)
	return &rig{
		chain:   chain,
		account: account,
		cache:   cache,
		watcher: w,
		orch:    orchestrator.New(cache, sub, w, account),
	}
}

func (r *rig) close() {
	_ = r.orch.Close()
	_ = r.watcher.Close()
	_ = r.cache.Close()
}

// seed creates a note as from, outside the orchestrator, and returns it.
func (r *rig) seed(t require.TestingT, from common.Address, title string, public bool) core.Note {
	ctx := context.Background()
	hash, err := r.chain.CreateNote(ctx, core.TxOpts{From: from}, title, "body", public)
	require.NoError(t, err)
	r.chain.Mine(ctx)
	lookup, err := r.chain.Lookup(ctx, hash)
	require.NoError(t, err)
	notes, err := r.chain.GetUserNotes(ctx, from)
	require.NoError(t, err)
	for _, n := range notes {
		if n.ID == lookup.Receipt.NoteID {
			return n
		}
	}
	require.FailNow(t, "seeded note not found")
	return core.Note{}
}

func (r *rig) fresh(t require.TestingT, key query.Key) query.Entry {
	e, err := r.cache.Fetch(context.Background(), key)
	require.NoError(t, err)
	return e
}

func TestAffects(t *testing.T) {
	ref := core.NoteRef{ID: 2, Author: bob, IsPublic: true}

	tests := []struct {
		name     string
		mutation core.Mutation
		want     []query.Key
		patterns []string
	}{
		{"private create", core.Create{Title: "a", Content: "b"}, []query.Key{query.UserNotes(alice), query.UserNoteCount(alice)}, nil},
		{"public create", core.Create{Title: "a", Content: "b", IsPublic: true}, []query.Key{query.UserNotes(alice), query.PublicNotes(), query.UserNoteCount(alice)}, nil},
		{"public update", core.Update{Note: ref, Title: "a", Content: "b"}, []query.Key{query.UserNotes(bob), query.PublicNotes()}, nil},
		{"private update", core.Update{Note: core.NoteRef{ID: 2, Author: bob}, Title: "a", Content: "b"}, []query.Key{query.UserNotes(bob)}, nil},
		{"delete", core.Delete{Note: ref}, []query.Key{query.UserNotes(bob), query.PublicNotes(), query.PinnedNotes(bob), query.UserNoteCount(bob)}, nil},
		{"visibility", core.ToggleVisibility{Note: ref}, []query.Key{query.UserNotes(bob), query.PublicNotes()}, nil},
		{"pin", core.TogglePin{Note: ref}, []query.Key{query.PinnedNotes(bob), query.UserNotes(bob)}, nil},
		{"tip", core.Tip{Note: ref, Amount: big.NewInt(1)}, []query.Key{query.PublicNotes(), query.UserNotes(bob)}, nil},
		{"tip unknown author", core.Tip{Note: core.NoteRef{ID: 2}, Amount: big.NewInt(1)}, []query.Key{query.PublicNotes()}, []string{"UserNotes/*"}},
		{"pin without author uses sender", core.TogglePin{Note: core.NoteRef{ID: 2}}, []query.Key{query.PinnedNotes(alice), query.UserNotes(alice)}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keys, patterns := orchestrator.Affects(tt.mutation, alice)
			assert.Equal(t, tt.want, keys)
			assert.Equal(t, tt.patterns, patterns)
		})
	}
}

func TestScenarioA_CreateConfirms(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	v := r.orch.Views()

	assert.Empty(t, r.fresh(t, v.UserNotes).Notes())
	public := r.fresh(t, v.PublicNotes)

	out, err := r.orch.Run(ctx, core.Create{Title: "Test", Content: "Hello"})
	require.NoError(t, err)
	assert.True(t, out.Confirmed())
	assert.Equal(t, uint64(1), out.Update.NoteID)
	assert.ElementsMatch(t, []query.Key{v.UserNotes, v.UserNoteCount}, out.Invalidated)

	notes := r.fresh(t, v.UserNotes).Notes()
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, "Test", n.Title)
	assert.Equal(t, uint64(1), n.Version)
	assert.False(t, n.IsPublic)
	assert.Equal(t, 0, n.TipsReceived.Sign())
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	// A private create leaves the public view alone.
	assert.Equal(t, public, r.cache.Get(v.PublicNotes))
	assert.Empty(t, r.orch.Phases())
}

func TestScenarioB_ZeroTipNeverSent(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))

	out, err := r.orch.Run(context.Background(), core.Tip{Note: core.NoteRef{ID: 3, Author: bob}, Amount: big.NewInt(0)})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)
	assert.Nil(t, out.Handle)
	assert.Equal(t, uint64(0), r.chain.Height())
	assert.Empty(t, r.orch.Phases())
}

func TestScenarioC_NonAuthorUpdateReverts(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	note := r.seed(t, bob, "bob's", true)

	for _, key := range []query.Key{query.UserNotes(alice), query.UserNotes(bob), query.PublicNotes()} {
		r.fresh(t, key)
	}
	before := r.cache.Snapshot()

	f := r.orch.Form()
	require.NoError(t, f.Edit(note))
	require.NoError(t, f.SetContent("hijacked"))

	out, err := r.orch.SubmitForm(ctx)
	var reverted *core.RevertedError
	require.ErrorAs(t, err, &reverted)
	assert.ErrorIs(t, err, core.ErrNotAuthor)
	assert.Equal(t, core.FailureReverted, out.Update.Reason)
	assert.Empty(t, out.Invalidated)

	assert.Equal(t, before, r.cache.Snapshot())

	view := f.View()
	assert.Equal(t, form.StateError, view.State)
	assert.Equal(t, "hijacked", view.Draft.Content)
	assert.Equal(t, note.ID, view.Note.ID)
}

func TestScenarioD_DoublePinToggle(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	note := r.seed(t, alice, "pin me", false)
	pinned := r.orch.Views().PinnedNotes

	assert.Empty(t, r.fresh(t, pinned).Notes())

	_, err := r.orch.Run(ctx, core.TogglePin{Note: note.Ref()})
	require.NoError(t, err)
	got := r.fresh(t, pinned).Notes()
	require.Len(t, got, 1)
	assert.Equal(t, note.ID, got[0].ID)

	_, err = r.orch.Run(ctx, core.TogglePin{Note: note.Ref()})
	require.NoError(t, err)
	assert.Empty(t, r.fresh(t, pinned).Notes())

	notes := r.fresh(t, r.orch.Views().UserNotes).Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, note.IsPinned, notes[0].IsPinned)
	assert.Equal(t, note.Version, notes[0].Version, "toggles never bump the version")
}

func TestRun_SuppressesDuplicateAction(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	note := r.seed(t, alice, "n", false)

	h1, err := r.orch.Dispatch(ctx, core.TogglePin{Note: note.Ref()})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.PhaseWatching, r.orch.Phases()["togglePin:1"])

	out, err := r.orch.Run(ctx, core.TogglePin{Note: note.Ref()})
	assert.ErrorIs(t, err, core.ErrActionInFlight)
	assert.Same(t, h1, out.Handle)

	h3, err := r.orch.Dispatch(ctx, core.TogglePin{Note: note.Ref()})
	assert.ErrorIs(t, err, core.ErrActionInFlight)
	assert.Same(t, h1, h3)

	r.chain.Mine(ctx)

	select {
	case out := <-r.orch.Outcomes():
		assert.True(t, out.Confirmed())
		assert.Same(t, h1, out.Handle)
	case <-time.After(2 * time.Second):
		t.Fatal("no outcome")
	}
	select {
	case extra := <-r.orch.Outcomes():
		t.Fatalf("unexpected second outcome %+v", extra)
	case <-time.After(20 * time.Millisecond):
	}

	pinned := r.fresh(t, query.PinnedNotes(alice)).Notes()
	assert.Len(t, pinned, 1)
	require.Eventually(t, func() bool { return len(r.orch.Phases()) == 0 }, time.Second, time.Millisecond)
}

func TestRun_DifferentNotesDoNotBlock(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	a := r.seed(t, alice, "a", false)
	b := r.seed(t, alice, "b", false)

	h1, err := r.orch.Dispatch(ctx, core.TogglePin{Note: a.Ref()})
	require.NoError(t, err)
	h2, err := r.orch.Dispatch(ctx, core.TogglePin{Note: b.Ref()})
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	r.chain.Mine(ctx)
	for range 2 {
		select {
		case out := <-r.orch.Outcomes():
			assert.True(t, out.Confirmed())
		case <-time.After(2 * time.Second):
			t.Fatal("no outcome")
		}
	}
	assert.Len(t, r.fresh(t, query.PinnedNotes(alice)).Notes(), 2)
}

func TestRun_NotConnected(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	r.account.Set(common.Address{})

	_, err := r.orch.Run(context.Background(), core.Create{Title: "a", Content: "b"})
	assert.ErrorIs(t, err, core.ErrNotConnected)

	v := r.orch.Views()
	assert.True(t, r.cache.Get(v.UserNotes).Disabled)
	assert.True(t, r.cache.Get(v.PinnedNotes).Disabled)
	assert.False(t, r.cache.Get(v.PublicNotes).Disabled)

	s, err := r.orch.Summary(context.Background())
	require.NoError(t, err)
	assert.False(t, s.Connected)
}

func TestRun_TipWithUnknownAuthorInvalidatesAllUserNotes(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	note := r.seed(t, bob, "tip jar", true)

	r.fresh(t, query.UserNotes(bob))
	r.fresh(t, query.UserNotes(alice))
	r.fresh(t, query.PinnedNotes(bob))

	out, err := r.orch.Run(ctx, core.Tip{Note: core.NoteRef{ID: note.ID}, Amount: big.NewInt(5)})
	require.NoError(t, err)
	assert.Contains(t, out.Invalidated, query.UserNotes(bob))
	assert.Contains(t, out.Invalidated, query.UserNotes(alice))
	assert.NotContains(t, out.Invalidated, query.PinnedNotes(bob))

	notes := r.fresh(t, query.UserNotes(bob)).Notes()
	require.Len(t, notes, 1)
	assert.Equal(t, int64(5), notes[0].TipsReceived.Int64())
}

func TestSubmitForm_CreateResetsForm(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	f := r.orch.Form()

	require.NoError(t, f.StartCreate())
	require.NoError(t, f.SetTitle("From form"))
	require.NoError(t, f.SetContent("body"))
	require.NoError(t, f.SetPublic(true))

	out, err := r.orch.SubmitForm(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.Invalidated, query.PublicNotes())
	assert.Equal(t, form.StateIdle, f.State())

	public := r.fresh(t, query.PublicNotes()).Notes()
	require.Len(t, public, 1)
	assert.Equal(t, "From form", public[0].Title)
}

func TestSubmitForm_RejectedKeepsDraft(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true), devnet.WithSigner(func(core.TxOpts, core.Kind) error {
		return assert.AnError
	}))
	f := r.orch.Form()
	require.NoError(t, f.StartCreate())
	require.NoError(t, f.SetTitle("t"))
	require.NoError(t, f.SetContent("c"))

	out, err := r.orch.SubmitForm(context.Background())
	assert.ErrorIs(t, err, core.ErrSubmissionRejected)
	assert.Equal(t, core.FailureRejected, out.Update.Reason)
	assert.Equal(t, form.StateError, f.State())
	assert.Equal(t, "t", f.View().Draft.Title)
}

func TestSubmitForm_UpdateAfterVisibilityChangeRefreshesPublic(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	note := r.seed(t, alice, "Old", false)
	r.fresh(t, query.UserNotes(alice))

	f := r.orch.Form()
	require.NoError(t, f.Edit(note))
	require.NoError(t, f.SetTitle("New"))

	// The draft still says private when this lands.
	_, err := r.orch.Run(ctx, core.ToggleVisibility{Note: note.Ref()})
	require.NoError(t, err)
	public := r.fresh(t, query.PublicNotes()).Notes()
	require.Len(t, public, 1)
	assert.Equal(t, "Old", public[0].Title)

	out, err := r.orch.SubmitForm(ctx)
	require.NoError(t, err)
	assert.Contains(t, out.Invalidated, query.PublicNotes())

	public = r.fresh(t, query.PublicNotes()).Notes()
	require.Len(t, public, 1)
	assert.Equal(t, "New", public[0].Title)
}

func TestRun_UpdateVisibilityFromCache(t *testing.T) {
	t.Run("known private note leaves public view alone", func(t *testing.T) {
		r := newRig(t, devnet.WithAutoMine(true))
		note := r.seed(t, alice, "quiet", false)
		r.fresh(t, query.UserNotes(alice))
		r.fresh(t, query.PublicNotes())

		out, err := r.orch.Run(context.Background(), core.Update{Note: note.Ref(), Title: "still", Content: "quiet"})
		require.NoError(t, err)
		assert.Equal(t, []query.Key{query.UserNotes(alice)}, out.Invalidated)
	})

	t.Run("uncached note refreshes public view", func(t *testing.T) {
		r := newRig(t, devnet.WithAutoMine(true))
		note := r.seed(t, alice, "loud", true)

		out, err := r.orch.Run(context.Background(), core.Update{Note: core.NoteRef{ID: note.ID}, Title: "louder", Content: "x"})
		require.NoError(t, err)
		assert.ElementsMatch(t, []query.Key{query.UserNotes(alice), query.PublicNotes()}, out.Invalidated)
	})
}

func TestSummary(t *testing.T) {
	r := newRig(t, devnet.WithAutoMine(true))
	ctx := context.Background()
	r.seed(t, alice, "one", false)
	n := r.seed(t, alice, "two", false)

	_, err := r.orch.Run(ctx, core.TogglePin{Note: n.Ref()})
	require.NoError(t, err)

	s, err := r.orch.Summary(ctx)
	require.NoError(t, err)
	assert.True(t, s.Connected)
	assert.Equal(t, alice, s.Address)
	assert.Equal(t, uint64(2), s.Notes)
	assert.Equal(t, 1, s.Pinned)

	st := r.orch.State().(orchestrator.OrchestratorState)
	assert.Equal(t, 1, st.Confirmed)
	assert.Equal(t, alice.Hex(), st.Account)
}

// TestFailureIsolation checks that any failed mutation leaves every cached
// view exactly as it was before submission.
func TestFailureIsolation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := buildRig(devnet.WithAutoMine(true))
		defer r.close()
		ctx := context.Background()
		note := r.seed(rt, bob, "bob's", rapid.Bool().Draw(rt, "public"))
		r.seed(rt, alice, "mine", true)

		for _, key := range []query.Key{
			query.UserNotes(alice), query.UserNotes(bob), query.PublicNotes(),
			query.PinnedNotes(alice), query.PinnedNotes(bob), query.UserNoteCount(alice),
		} {
			r.fresh(rt, key)
		}
		before := r.cache.Snapshot()

		missing := core.NoteRef{ID: 999, Author: bob}
		mutations := []core.Mutation{
			core.Update{Note: note.Ref(), Title: "x", Content: "y"},
			core.Delete{Note: note.Ref()},
			core.ToggleVisibility{Note: note.Ref()},
			core.TogglePin{Note: note.Ref()},
			core.Tip{Note: missing, Amount: big.NewInt(1)},
			core.Delete{Note: missing},
		}
		m := rapid.SampledFrom(mutations).Draw(rt, "mutation")

		out, err := r.orch.Run(ctx, m)
		if err == nil || out.Update.Status != txn.StatusFailed {
			rt.Fatalf("%s by non-author should fail, got %v (%v)", m.Kind(), out.Update.Status, err)
		}
		if len(out.Invalidated) != 0 {
			rt.Fatalf("failed mutation invalidated %v", out.Invalidated)
		}
		assert.Equal(rt, before, r.cache.Snapshot())
	})
}
