package query

import (
	"context"
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// EventType classifies cache events.
type EventType int

const (
	// EventInvalidated fires when an entry is marked stale.
	EventInvalidated EventType = iota + 1
	// EventRefreshed fires when a fetch stores a new value.
	EventRefreshed
	// EventFetchFailed fires when a fetch fails; the old value is kept.
	EventFetchFailed
)

func (t EventType) String() string {
	switch t {
	case EventInvalidated:
		return "INVALIDATED"
	case EventRefreshed:
		return "REFRESHED"
	case EventFetchFailed:
		return "FETCH_FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event reports a change to one cache entry.
type Event struct {
	Type EventType
	Key  Key
	Err  error
}

// String makes Event usable as a lifecycle.Event.
func (e Event) String() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Type, e.Key, e.Err)
	}
	return fmt.Sprintf("%s %s", e.Type, e.Key)
}

type subscriber struct {
	pattern string
	ch      chan Event
}

// Subscribe delivers events for keys matching pattern until ctx is done or
// the cache is closed, then closes the channel. An empty pattern matches
// every key. Patterns use doublestar syntax against Key.String, so
// "UserNotes/*" selects every user's note list.
//
// Delivery never blocks the cache: when the subscriber's buffer is full the
// event is dropped and the consumer should re-read with Get.
func (c *Cache) Subscribe(ctx context.Context, pattern string) (<-chan Event, error) {
	if pattern == "" {
		pattern = "**"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid key pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	s := &subscriber{pattern: pattern, ch: make(chan Event, c.buffer)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(s.ch)
		return s.ch, nil
	}
	c.subs[s] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.ctx.Done():
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			close(s.ch)
		}
	}()

	return s.ch, nil
}

func (c *Cache) publishLocked(e Event) {
	name := e.Key.String()
	for s := range c.subs {
		if !matchKey(s.pattern, name) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			c.logger.Debug("subscriber lagging, event dropped", "key", name, "pattern", s.pattern, "event", e.Type.String())
		}
	}
}

func matchKey(pattern, name string) bool {
	ok, err := doublestar.Match(pattern, name)
	return err == nil && ok
}
