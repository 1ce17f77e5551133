// Package observe binds read-only views to a store: it watches state
// snapshots and hands them to a render callback. It never mutates state;
// writes go through the store's own Send.
package observe

import (
	"context"

	"github.com/ronstorm/tca-kit/store"
)

type config[S any] struct {
	buffer int
	equal  func(S, S) bool
}

// Option configures a binding.
type Option[S any] func(*config[S])

// WithBuffer sets the snapshot buffer between the store and the renderer.
// A slow renderer drops intermediate snapshots rather than stalling turns.
func WithBuffer[S any](n int) Option[S] {
	return func(cfg *config[S]) {
		if n > 0 {
			cfg.buffer = n
		}
	}
}

// WithDedupe skips renders whose snapshot equals the previous one.
func WithDedupe[S any](equal func(S, S) bool) Option[S] {
	return func(cfg *config[S]) {
		cfg.equal = equal
	}
}

// Bind starts rendering the store's state. The render callback receives the
// initial snapshot, then one snapshot per observed change, all on a single
// dedicated goroutine. Bind returns a stop function; rendering also stops
// when ctx is done or the store closes.
func Bind[S, A any](
	ctx context.Context,
	s *store.Store[S, A],
	render func(S),
	opts ...Option[S],
) (stop func()) {
	cfg := config[S]{buffer: 16}
	for _, opt := range opts {
		opt(&cfg)
	}

	snapshots, unsubscribe := s.Subscribe(cfg.buffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		var prev S
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case snapshot, ok := <-snapshots:
				if !ok {
					return
				}
				if !first && cfg.equal != nil && cfg.equal(prev, snapshot) {
					continue
				}
				render(snapshot)
				prev = snapshot
				first = false
			}
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}
