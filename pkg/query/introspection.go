package query

import (
	"github.com/aretw0/introspection"
)

// CacheState exposes internal state for observability.
type CacheState struct {
	Entries     int  `json:"entries"`
	Stale       int  `json:"stale"`
	Fetching    int  `json:"fetching"`
	Failed      int  `json:"failed"`
	Subscribers int  `json:"subscribers"`
	Closed      bool `json:"closed"`
}

// State implements introspection.Introspectable.
func (c *Cache) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := CacheState{
		Entries:     c.items.ItemCount(),
		Subscribers: len(c.subs),
		Closed:      c.closed,
	}
	for _, item := range c.items.Items() {
		rec := item.Object.(*record)
		if rec.stale {
			st.Stale++
		}
		if rec.fetching {
			st.Fetching++
		}
		if rec.err != nil {
			st.Failed++
		}
	}
	return st
}

// ComponentType implements introspection.Component.
func (c *Cache) ComponentType() string {
	return "query-cache"
}

var _ introspection.Introspectable = (*Cache)(nil)
var _ introspection.Component = (*Cache)(nil)
