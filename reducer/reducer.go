// Package reducer composes small reducers into larger ones without changing
// the core contract: each combinator still yields a pure, synchronous
// transition returning a single effect value.
package reducer

import (
	"github.com/ronstorm/tca-kit/deps"
	"github.com/ronstorm/tca-kit/effect"
	"github.com/ronstorm/tca-kit/store"
)

// Combine runs the reducers in order against the same action, each mutating
// the shared state, and merges every returned effect so they are all
// scheduled concurrently. No reducer's effect is dropped.
func Combine[S, A any](reducers ...store.Reducer[S, A]) store.Reducer[S, A] {
	return func(state *S, action A, d deps.Dependencies) effect.Effect[A] {
		effects := make([]effect.Effect[A], 0, len(reducers))
		for _, r := range reducers {
			effects = append(effects, r(state, action, d))
		}
		return effect.Merge(effects...)
	}
}

// Filter wraps a reducer so it only fires when the incoming action equals
// match exactly; otherwise the state is untouched and the effect is none.
func Filter[S any, A comparable](match A, r store.Reducer[S, A]) store.Reducer[S, A] {
	return func(state *S, action A, d deps.Dependencies) effect.Effect[A] {
		if action != match {
			return effect.None[A]()
		}
		return r(state, action, d)
	}
}

// Adapt lifts a reducer over a narrower local action type into the outer
// action type. from is a partial mapping from outer to local action; when
// it yields nothing the wrapped reducer is skipped and the effect is none.
// into embeds local actions produced by the wrapped reducer's effect back
// into the outer type.
func Adapt[S, A, L any](
	r store.Reducer[S, L],
	from func(A) (L, bool),
	into func(L) A,
) store.Reducer[S, A] {
	return func(state *S, action A, d deps.Dependencies) effect.Effect[A] {
		local, ok := from(action)
		if !ok {
			return effect.None[A]()
		}
		eff := r(state, local, d)
		return effect.Map(eff, func(l L) (A, bool) {
			return into(l), true
		})
	}
}
