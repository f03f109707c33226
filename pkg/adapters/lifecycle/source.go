// Package lifecycle exposes cache events to aretw0/lifecycle supervisors.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/JPrieve/web3-notes/pkg/query"
)

type cacheSource struct {
	events <-chan query.Event
	out    chan lifecycle.Event
}

// NewSource creates a lifecycle.Source that emits cache events, typically
// from query.Cache.Subscribe. The source stops when events closes or the
// context passed to Start is done.
func NewSource(events <-chan query.Event) lifecycle.Source {
	return &cacheSource{
		events: events,
		out:    make(chan lifecycle.Event),
	}
}

func (s *cacheSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *cacheSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(s.out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-s.events:
				if !ok {
					return nil
				}
				// query.Event has String(), so it is a lifecycle.Event.
				select {
				case s.out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return nil
}
