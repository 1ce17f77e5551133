package effect

import (
	"context"
)

// Operation is the deferred computation carried by a runnable effect.
// It may emit zero or more follow-up actions through emit; every emitted
// action becomes its own serialized turn on the owning store. The operation
// must return when ctx is cancelled.
type Operation[A any] func(ctx context.Context, emit func(A))

type kind uint8

const (
	kindNone kind = iota
	kindRun
	kindCancel
	kindMerge
)

// Effect describes what should happen after a reducer call, without running
// any of it yet. It is a closed sum:
//
//	none | run(operation) | cancel-request(id) | merge(effects...)
//
// plus orthogonal cancellation metadata (slot id, cancel-in-flight flag).
// Effects are plain values; they are consumed exactly once by a store.
type Effect[A any] struct {
	kind           kind
	op             Operation[A]
	merged         []Effect[A]
	cancelID       any
	cancelInFlight bool
}

// None constructs the empty effect: no follow-up action, no task registered.
func None[A any]() Effect[A] {
	return Effect[A]{kind: kindNone}
}

// Send constructs an effect that immediately resolves to action.
// The chained action is processed as a new turn, never nested inside the
// reducer call that returned it.
func Send[A any](action A) Effect[A] {
	return Run(func(ctx context.Context, emit func(A)) {
		emit(action)
	})
}

// Sequence constructs an effect that emits the given actions in order,
// one serialized turn per action. A single goroutine drives the emission,
// so the actions observe FIFO ordering relative to each other.
func Sequence[A any](actions ...A) Effect[A] {
	if len(actions) == 0 {
		return None[A]()
	}
	return Run(func(ctx context.Context, emit func(A)) {
		for _, a := range actions {
			select {
			case <-ctx.Done():
				return
			default:
			}
			emit(a)
		}
	})
}

// Task wraps an asynchronous, fallible computation. On success the result is
// mapped through transform into the follow-up action. On failure the effect
// resolves to no action: the error is swallowed at this layer. Callers that
// want error-driven actions should use TaskCatching.
func Task[R, A any](op func(ctx context.Context) (R, error), transform func(R) A) Effect[A] {
	return Run(func(ctx context.Context, emit func(A)) {
		res, err := op(ctx)
		if err != nil {
			return
		}
		emit(transform(res))
	})
}

// TaskCatching is Task with an explicit error path: operation failures are
// mapped through onError into a domain action instead of being dropped.
// Context cancellation still resolves to no action.
func TaskCatching[R, A any](
	op func(ctx context.Context) (R, error),
	transform func(R) A,
	onError func(error) A,
) Effect[A] {
	return Run(func(ctx context.Context, emit func(A)) {
		res, err := op(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			emit(onError(err))
			return
		}
		emit(transform(res))
	})
}

// Run constructs an effect from a raw operation. Most callers want Task or
// Send; Run is the escape hatch for multi-emitting operations such as
// stream subscriptions.
func Run[A any](op Operation[A]) Effect[A] {
	return Effect[A]{kind: kindRun, op: op}
}

// Cancel constructs a cancellation-request effect. It carries no operation:
// sending it to a store only cancels whatever task is registered under id,
// a silent no-op when there is none.
func Cancel[A any](id any) Effect[A] {
	return Effect[A]{kind: kindCancel, cancelID: id}
}

// Merge combines several effects into one; a store schedules every runnable
// leaf concurrently. None leaves are dropped.
func Merge[A any](effects ...Effect[A]) Effect[A] {
	kept := make([]Effect[A], 0, len(effects))
	for _, e := range effects {
		if e.kind == kindNone {
			continue
		}
		kept = append(kept, e)
	}
	switch len(kept) {
	case 0:
		return None[A]()
	case 1:
		return kept[0]
	default:
		return Effect[A]{kind: kindMerge, merged: kept}
	}
}

// Cancellable returns a copy of the effect registered under the given slot
// id. With cancelInFlight set, starting the effect first cancels any task
// currently running under the same id. Applying Cancellable to a merged
// effect tags every leaf. Pure transformation; nothing runs here.
func (e Effect[A]) Cancellable(id any, cancelInFlight bool) Effect[A] {
	if e.kind == kindMerge {
		tagged := make([]Effect[A], len(e.merged))
		for i, child := range e.merged {
			tagged[i] = child.Cancellable(id, cancelInFlight)
		}
		return Effect[A]{kind: kindMerge, merged: tagged}
	}
	e.cancelID = id
	e.cancelInFlight = cancelInFlight
	return e
}

// Map re-targets an effect's output through a partial mapping, dropping
// actions the mapping rejects. Cancellation metadata is preserved unchanged,
// so effects keep their slot identity across a scope boundary.
func Map[A, B any](e Effect[A], f func(A) (B, bool)) Effect[B] {
	out := Effect[B]{
		kind:           e.kind,
		cancelID:       e.cancelID,
		cancelInFlight: e.cancelInFlight,
	}
	switch e.kind {
	case kindNone, kindCancel:
		return out
	case kindMerge:
		out.merged = make([]Effect[B], len(e.merged))
		for i, child := range e.merged {
			out.merged[i] = Map(child, f)
		}
		return out
	case kindRun:
		op := e.op
		out.op = func(ctx context.Context, emit func(B)) {
			op(ctx, func(a A) {
				if b, ok := f(a); ok {
					emit(b)
				}
			})
		}
		return out
	default:
		// Effect is a sealed sum; an unknown kind is a bug in this package.
		panic("effect: unknown effect kind")
	}
}

// IsNone reports whether the effect does nothing at all.
func (e Effect[A]) IsNone() bool { return e.kind == kindNone }

// IsCancelRequest reports whether the effect is a pure cancellation signal.
func (e Effect[A]) IsCancelRequest() bool { return e.kind == kindCancel }

// CancelKey returns the cancellation slot id, if any.
func (e Effect[A]) CancelKey() (any, bool) {
	if e.cancelID == nil {
		return nil, false
	}
	return e.cancelID, true
}

// CancelsInFlight reports whether starting this effect first cancels the
// task currently registered under its slot.
func (e Effect[A]) CancelsInFlight() bool { return e.cancelInFlight }

// Leaves flattens the effect into its schedulable parts. None resolves to
// an empty slice; a non-merge effect is its own single leaf.
func (e Effect[A]) Leaves() []Effect[A] {
	switch e.kind {
	case kindNone:
		return nil
	case kindMerge:
		leaves := make([]Effect[A], 0, len(e.merged))
		for _, child := range e.merged {
			leaves = append(leaves, child.Leaves()...)
		}
		return leaves
	default:
		return []Effect[A]{e}
	}
}

// Operation returns the runnable operation, nil for none and
// cancellation-request effects.
func (e Effect[A]) Operation() Operation[A] { return e.op }
