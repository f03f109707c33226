package orchestrator

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/JPrieve/web3-notes/pkg/core"
	"github.com/JPrieve/web3-notes/pkg/query"
)

// anyUserNotes selects every user's note list. It stands in for the author
// of a tipped note when the caller did not know it.
const anyUserNotes = "UserNotes/*"

// Affects lists the read views a confirmed mutation makes stale. from is the
// account that sent it, which is the author for every kind except tip.
// Patterns are returned when a key cannot be named exactly.
func Affects(m core.Mutation, from common.Address) (keys []query.Key, patterns []string) {
	author := from
	if ref, ok := core.Target(m); ok && ref.Author != (common.Address{}) {
		author = ref.Author
	}

	switch v := m.(type) {
	case core.Create:
		keys = append(keys, query.UserNotes(from))
		if v.IsPublic {
			keys = append(keys, query.PublicNotes())
		}
		keys = append(keys, query.UserNoteCount(from))

	case core.Update:
		keys = append(keys, query.UserNotes(author))
		if v.Note.IsPublic {
			keys = append(keys, query.PublicNotes())
		}

	case core.Delete:
		keys = append(keys,
			query.UserNotes(author),
			query.PublicNotes(),
			query.PinnedNotes(author),
			query.UserNoteCount(author),
		)

	case core.ToggleVisibility:
		keys = append(keys, query.UserNotes(author), query.PublicNotes())

	case core.TogglePin:
		keys = append(keys, query.PinnedNotes(author), query.UserNotes(author))

	case core.Tip:
		keys = append(keys, query.PublicNotes())
		if v.Note.Author == (common.Address{}) {
			patterns = append(patterns, anyUserNotes)
		} else {
			keys = append(keys, query.UserNotes(v.Note.Author))
		}
	}
	return keys, patterns
}

// settledKeys is Affects widened by what the cache knows when m confirms.
// An update carries the visibility its draft was opened with, which may be
// out of date, so PublicNotes is added unless the cache shows the note as
// private.
func (o *Orchestrator) settledKeys(m core.Mutation, from common.Address) ([]query.Key, []string) {
	keys, patterns := Affects(m, from)
	u, ok := m.(core.Update)
	if !ok || u.Note.IsPublic {
		return keys, patterns
	}
	author := from
	if u.Note.Author != (common.Address{}) {
		author = u.Note.Author
	}
	if o.knownPrivate(u.Note.ID, author) {
		return keys, patterns
	}
	return append(keys, query.PublicNotes()), patterns
}

// knownPrivate reports whether a fresh cached list of author's notes holds
// note id as private and the public list does not hold it.
func (o *Orchestrator) knownPrivate(id uint64, author common.Address) bool {
	if public, ok := o.cache.Peek(query.PublicNotes()); ok {
		for _, n := range public.Notes() {
			if n.ID == id {
				return false
			}
		}
	}

	own, ok := o.cache.Peek(query.UserNotes(author))
	if !ok || !own.Loaded || own.Stale || own.Fetching {
		return false
	}
	for _, n := range own.Notes() {
		if n.ID == id {
			return !n.IsPublic
		}
	}
	return false
}
