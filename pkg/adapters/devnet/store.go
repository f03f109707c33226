package devnet

import (
	"context"
	"sort"
	"sync"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// Store persists contract state for the simulated chain.
type Store interface {
	// Insert assigns the next id (never reused) and stores the note.
	Insert(ctx context.Context, n core.Note) (uint64, error)

	// Get retrieves a note by id.
	Get(ctx context.Context, id uint64) (core.Note, bool, error)

	// Put overwrites an existing note.
	Put(ctx context.Context, n core.Note) error

	// Delete removes a note. Its id stays consumed.
	Delete(ctx context.Context, id uint64) error

	// List returns every live note in ascending id order.
	List(ctx context.Context) ([]core.Note, error)
}

// MemoryStore is the default in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	notes  map[uint64]core.Note
	lastID uint64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{notes: make(map[uint64]core.Note)}
}

func (s *MemoryStore) Insert(ctx context.Context, n core.Note) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	n.ID = s.lastID
	s.notes[n.ID] = n.Clone()
	return n.ID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uint64) (core.Note, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notes[id]
	if !ok {
		return core.Note{}, false, nil
	}
	return n.Clone(), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, n core.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[n.ID]; !ok {
		return core.ErrNoteNotFound
	}
	s.notes[n.ID] = n.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notes[id]; !ok {
		return core.ErrNoteNotFound
	}
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]core.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]core.Note, 0, len(s.notes))
	for _, n := range s.notes {
		notes = append(notes, n.Clone())
	}
	sort.Slice(notes, func(i, j int) bool {
		return notes[i].ID < notes[j].ID
	})
	return notes, nil
}
