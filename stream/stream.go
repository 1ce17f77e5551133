// Package stream bridges channel-based reactive streams and the store:
// values flowing on a channel become effects resolving to actions, and
// store state becomes a stream of snapshots. The bridge adds no mutation
// path of its own; everything enters the store through Send.
package stream

import (
	"context"

	"github.com/ronstorm/tca-kit/effect"
	"github.com/ronstorm/tca-kit/store"
)

// First converts a stream into an effect resolving to one action: the first
// value received is mapped through transform, then the effect completes.
// A closed source or a cancelled task resolves to no action.
func First[T, A any](source <-chan T, transform func(T) A) effect.Effect[A] {
	return effect.Run(func(ctx context.Context, emit func(A)) {
		select {
		case <-ctx.Done():
		case v, ok := <-source:
			if !ok {
				return
			}
			emit(transform(v))
		}
	})
}

// Each converts a stream into a long-lived effect emitting one action per
// received value, in source order. The effect ends when the source closes
// or the task is cancelled; pair it with a cancellation id so the
// subscription can be torn down explicitly.
func Each[T, A any](source <-chan T, transform func(T) A) effect.Effect[A] {
	return effect.Run(func(ctx context.Context, emit func(A)) {
		for {
			select {
			case <-ctx.Done():
				return
			case v, ok := <-source:
				if !ok {
					return
				}
				emit(transform(v))
			}
		}
	})
}

// Snapshots exposes store state as a stream: the current snapshot first,
// then one per completed turn, dropping intermediates when the consumer
// falls behind buffer. The returned stop function ends the stream.
func Snapshots[S, A any](s *store.Store[S, A], buffer int) (<-chan S, func()) {
	return s.Subscribe(buffer)
}
