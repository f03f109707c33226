// Package core holds the note domain shared by every layer of the sync engine:
// the Note entity, the ledger ports, the closed set of mutations and the error
// taxonomy.
package core

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Note is the central entity of the domain.
// The ledger is authoritative; every Note held by the client is a projection.
type Note struct {
	ID           uint64         `json:"id"`
	Author       common.Address `json:"author"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	CreatedAt    uint64         `json:"createdAt"` // Unix seconds
	UpdatedAt    uint64         `json:"updatedAt"` // Unix seconds, never below CreatedAt
	IsPublic     bool           `json:"isPublic"`
	IsPinned     bool           `json:"isPinned"`
	TipsReceived *big.Int       `json:"tipsReceived"` // Wei
	Version      uint64         `json:"version"`
}

// OwnedBy reports whether addr authored the note.
// Addresses compare by value, so checksum casing never matters.
func (n Note) OwnedBy(addr common.Address) bool {
	return n.Author == addr
}

// Edited reports whether the note has been updated since creation.
func (n Note) Edited() bool {
	return n.UpdatedAt > n.CreatedAt
}

// Ref returns the reference mutations use to target this note.
func (n Note) Ref() NoteRef {
	return NoteRef{ID: n.ID, Author: n.Author, IsPublic: n.IsPublic}
}

// Clone returns a deep copy; the tip accumulator is not shared.
func (n Note) Clone() Note {
	c := n
	if n.TipsReceived != nil {
		c.TipsReceived = new(big.Int).Set(n.TipsReceived)
	}
	return c
}

// NoteRef identifies an existing note together with the fields the client
// needs to know which read-views a mutation on it affects.
type NoteRef struct {
	ID       uint64         `json:"id"`
	Author   common.Address `json:"author"`
	IsPublic bool           `json:"isPublic"`
}

// NoteCreated is emitted by the ledger when a note is created.
// It is informational; cache invalidation never depends on it.
type NoteCreated struct {
	ID       uint64         `json:"id"`
	Author   common.Address `json:"author"`
	Title    string         `json:"title"`
	IsPublic bool           `json:"isPublic"`
}

// CloneNotes deep-copies a slice of notes.
func CloneNotes(notes []Note) []Note {
	if notes == nil {
		return nil
	}
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = n.Clone()
	}
	return out
}
