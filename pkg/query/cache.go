// Package query caches ledger read views keyed by operation and arguments.
//
// Entries are created lazily on first read and live until the Cache is
// closed. Invalidation marks an entry stale and schedules a background
// refetch; the previous value stays readable until the refetch lands.
// Consumers learn about changes by subscribing to key patterns.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/JPrieve/web3-notes/pkg/core"
)

// ErrClosed is returned by Fetch after Close.
var ErrClosed = errors.New("query cache closed")

// Entry is a point-in-time view of a cached read.
type Entry struct {
	Key Key

	// Value is []core.Note for note lists and uint64 for UserNoteCount.
	// Nil until the first successful fetch.
	Value any

	// Loaded is true once any fetch has succeeded.
	Loaded bool

	// Stale is set by invalidation and by failed fetches. A stale entry
	// still carries its last good Value.
	Stale bool

	// Err is the most recent fetch error, cleared by the next success.
	Err error

	// Disabled entries belong to user-scoped keys without a user.
	Disabled bool

	Fetching  bool
	UpdatedAt time.Time
}

// Notes returns the note list held by the entry.
func (e Entry) Notes() []core.Note {
	notes, _ := e.Value.([]core.Note)
	return core.CloneNotes(notes)
}

// Count returns the count held by the entry.
func (e Entry) Count() uint64 {
	n, _ := e.Value.(uint64)
	return n
}

type record struct {
	key       Key
	value     any
	loaded    bool
	stale     bool
	err       error
	gen       uint64
	fetching  bool
	updatedAt time.Time
}

func (r *record) snapshot() Entry {
	e := Entry{
		Key:       r.key,
		Loaded:    r.loaded,
		Stale:     r.stale,
		Err:       r.err,
		Fetching:  r.fetching,
		UpdatedAt: r.updatedAt,
	}
	switch v := r.value.(type) {
	case []core.Note:
		e.Value = core.CloneNotes(v)
	default:
		e.Value = v
	}
	return e
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger for the cache.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// WithEventBuffer sets the per-subscriber channel capacity.
// Events for a subscriber whose buffer is full are dropped.
func WithEventBuffer(size int) Option {
	return func(c *Cache) {
		if size > 0 {
			c.buffer = size
		}
	}
}

// Cache is the read-query cache. It is safe for concurrent use.
type Cache struct {
	reader core.Reader
	logger *slog.Logger
	buffer int

	ctx    context.Context
	cancel context.CancelFunc
	group  singleflight.Group

	mu     sync.Mutex
	items  *gocache.Cache
	subs   map[*subscriber]struct{}
	closed bool
}

// New creates a Cache reading from r.
func New(r core.Reader, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		reader: r,
		buffer: 64,
		ctx:    ctx,
		cancel: cancel,
		items:  gocache.New(gocache.NoExpiration, 0),
		subs:   make(map[*subscriber]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// Get returns the current entry for key without blocking. A missing entry is
// created and its first fetch started in the background. Fetch errors are
// reported through Entry.Err, never returned.
func (c *Cache) Get(key Key) Entry {
	if key.Disabled() {
		return Entry{Key: key, Disabled: true}
	}

	c.mu.Lock()
	if rec, ok := c.lookupLocked(key); ok {
		e := rec.snapshot()
		c.mu.Unlock()
		return e
	}
	if c.closed {
		c.mu.Unlock()
		return Entry{Key: key}
	}
	rec := c.createLocked(key)
	rec.fetching = true
	e := rec.snapshot()
	job := fetchJob{key: key, gen: rec.gen}
	c.mu.Unlock()

	c.spawn(job)
	return e
}

// Peek returns the entry for key if one exists. Unlike Get it never creates
// an entry or starts a fetch.
func (c *Cache) Peek(key Key) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.lookupLocked(key)
	if !ok {
		return Entry{Key: key}, false
	}
	return rec.snapshot(), true
}

// Fetch blocks until key has a fresh value, sharing any fetch already in
// flight for the same generation. A fresh cached entry is returned as is.
func (c *Cache) Fetch(ctx context.Context, key Key) (Entry, error) {
	if key.Disabled() {
		return Entry{Key: key, Disabled: true}, nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Entry{Key: key}, ErrClosed
	}
	rec, ok := c.lookupLocked(key)
	if !ok {
		rec = c.createLocked(key)
	}
	if rec.loaded && !rec.stale && !rec.fetching {
		e := rec.snapshot()
		c.mu.Unlock()
		return e, nil
	}
	rec.fetching = true
	gen := rec.gen
	c.mu.Unlock()

	select {
	case res := <-c.flight(key, gen):
		return c.snapshot(key), res.Err
	case <-ctx.Done():
		return c.snapshot(key), ctx.Err()
	}
}

// Invalidate marks each existing entry stale and schedules its refetch.
// It never waits on the network. Keys with no entry yet are ignored.
func (c *Cache) Invalidate(keys ...Key) {
	var jobs []fetchJob

	c.mu.Lock()
	for _, key := range keys {
		if key.Disabled() {
			continue
		}
		if rec, ok := c.lookupLocked(key); ok {
			jobs = c.invalidateLocked(rec, jobs)
		}
	}
	c.mu.Unlock()

	c.spawn(jobs...)
}

// InvalidatePattern invalidates every existing entry whose key matches the
// doublestar pattern, e.g. "UserNotes/*". It returns the keys it touched.
func (c *Cache) InvalidatePattern(pattern string) ([]Key, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	var (
		touched []Key
		jobs    []fetchJob
	)

	c.mu.Lock()
	for name, item := range c.items.Items() {
		if !matchKey(pattern, name) {
			continue
		}
		rec := item.Object.(*record)
		jobs = c.invalidateLocked(rec, jobs)
		touched = append(touched, rec.key)
	}
	c.mu.Unlock()

	c.spawn(jobs...)
	return touched, nil
}

// Keys lists every key with an entry.
func (c *Cache) Keys() []Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]Key, 0, c.items.ItemCount())
	for _, item := range c.items.Items() {
		keys = append(keys, item.Object.(*record).key)
	}
	return keys
}

// Snapshot copies every entry.
func (c *Cache) Snapshot() map[Key]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[Key]Entry, c.items.ItemCount())
	for _, item := range c.items.Items() {
		rec := item.Object.(*record)
		out[rec.key] = rec.snapshot()
	}
	return out
}

// Close cancels background fetches and closes every subscription. Results
// arriving afterwards are discarded. Entries stay readable through Get.
func (c *Cache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for s := range c.subs {
		delete(c.subs, s)
		close(s.ch)
	}
	c.mu.Unlock()

	c.cancel()
	return nil
}

func (c *Cache) snapshot(key Key) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rec, ok := c.lookupLocked(key); ok {
		return rec.snapshot()
	}
	return Entry{Key: key}
}

func (c *Cache) lookupLocked(key Key) (*record, bool) {
	v, ok := c.items.Get(key.String())
	if !ok {
		return nil, false
	}
	return v.(*record), true
}

func (c *Cache) createLocked(key Key) *record {
	rec := &record{key: key}
	c.items.Set(key.String(), rec, gocache.NoExpiration)
	return rec
}

type fetchJob struct {
	key Key
	gen uint64
}

// invalidateLocked bumps the generation of rec and appends its refetch to jobs.
func (c *Cache) invalidateLocked(rec *record, jobs []fetchJob) []fetchJob {
	rec.gen++
	rec.stale = true
	c.logger.Debug("cache invalidated", "key", rec.key.String(), "gen", rec.gen)
	c.publishLocked(Event{Type: EventInvalidated, Key: rec.key})

	if c.closed {
		return jobs
	}
	rec.fetching = true
	return append(jobs, fetchJob{key: rec.key, gen: rec.gen})
}

// spawn runs each fetch in the background. Must be called without c.mu held.
func (c *Cache) spawn(jobs ...fetchJob) {
	for _, j := range jobs {
		lifecycle.Go(c.ctx, func(ctx context.Context) error {
			<-c.flight(j.key, j.gen)
			return nil
		}, lifecycle.WithErrorHandler(func(err error) {
			c.logger.Error("background fetch panic", "key", j.key.String(), "error", err)
		}))
	}
}

// flight joins or starts the single fetch for key at gen. The result is
// applied exactly once, by whichever caller started it.
func (c *Cache) flight(key Key, gen uint64) <-chan singleflight.Result {
	return c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (any, error) {
		v, err := c.read(c.ctx, key)
		c.apply(key, gen, v, err)
		return v, err
	})
}

func (c *Cache) read(ctx context.Context, key Key) (any, error) {
	switch key.Op {
	case OpUserNotes:
		return c.reader.GetUserNotes(ctx, key.User)
	case OpPublicNotes:
		return c.reader.GetPublicNotes(ctx)
	case OpPinnedNotes:
		return c.reader.GetPinnedNotes(ctx, key.User)
	case OpUserNoteCount:
		return c.reader.GetUserNoteCount(ctx, key.User)
	default:
		return nil, fmt.Errorf("unknown read operation %q", key.Op)
	}
}

// apply stores a fetch result. Results from a superseded generation are
// discarded so a fetch that began before an invalidation can never clear it.
func (c *Cache) apply(key Key, gen uint64, v any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.lookupLocked(key)
	if !ok || rec.gen != gen || c.closed {
		return
	}
	rec.fetching = false

	if err != nil {
		rec.stale = true
		rec.err = err
		c.logger.Warn("fetch failed", "key", key.String(), "error", err)
		c.publishLocked(Event{Type: EventFetchFailed, Key: key, Err: err})
		return
	}

	rec.value = v
	rec.loaded = true
	rec.stale = false
	rec.err = nil
	rec.updatedAt = time.Now()
	c.publishLocked(Event{Type: EventRefreshed, Key: key})
}
