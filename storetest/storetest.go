// Package storetest is a harness for exercising reducers and effects
// against a real store: send actions, assert on the state after each
// synchronous mutation, and assert on the follow-up actions effects feed
// back in. The harness is exhaustive — every effect-delivered action must
// be consumed with Receive before Finish.
package storetest

import (
	"sync"
	"testing"
	"time"

	"github.com/rickb777/date/v2/timespan"
	"github.com/stretchr/testify/assert"

	"github.com/ronstorm/tca-kit/deps"
	"github.com/ronstorm/tca-kit/effect"
	"github.com/ronstorm/tca-kit/store"
)

// Entry is one completed turn in the transcript: the action, the state
// around it, and the wall-clock span of the reducer call.
type Entry[S, A any] struct {
	Action A
	Before S
	After  S
	Span   timespan.TimeSpan
}

// TestStore wraps a root store with turn recording. Create one per test.
type TestStore[S, A any] struct {
	t        testing.TB
	store    *store.Store[S, A]
	received chan Entry[S, A]
	timeout  time.Duration

	mu         sync.Mutex
	transcript []Entry[S, A]
}

const defaultReceiveTimeout = 2 * time.Second

// New builds a harness around the given reducer and dependencies. The
// wrapped store is closed automatically when the test ends.
func New[S, A any](
	t testing.TB,
	initial S,
	r store.Reducer[S, A],
	d deps.Dependencies,
	opts ...store.Option,
) *TestStore[S, A] {
	ts := &TestStore[S, A]{
		t:        t,
		received: make(chan Entry[S, A], 256),
		timeout:  defaultReceiveTimeout,
	}
	recording := func(state *S, action A, d deps.Dependencies) effect.Effect[A] {
		before := *state
		start := time.Now()
		eff := r(state, action, d)
		entry := Entry[S, A]{
			Action: action,
			Before: before,
			After:  *state,
			Span:   timespan.BetweenTimes(start, time.Now()),
		}
		ts.mu.Lock()
		ts.transcript = append(ts.transcript, entry)
		ts.mu.Unlock()
		select {
		case ts.received <- entry:
		default:
			t.Errorf("storetest: turn buffer overflow, entry for %+v lost", action)
		}
		return eff
	}
	ts.store = store.New(initial, recording, d, opts...)
	t.Cleanup(ts.store.Close)
	return ts
}

// SetReceiveTimeout adjusts how long Receive waits for a follow-up action.
func (ts *TestStore[S, A]) SetReceiveTimeout(d time.Duration) {
	ts.timeout = d
}

// Store exposes the underlying store, e.g. for scoping in tests.
func (ts *TestStore[S, A]) Store() *store.Store[S, A] { return ts.store }

// State returns the current state snapshot.
func (ts *TestStore[S, A]) State() S { return ts.store.State() }

// Send dispatches the action and returns after the synchronous mutation
// completed, passing the resulting state to the assertion. Effect-delivered
// actions that arrived before this send must already have been consumed
// with Receive; an unconsumed one fails the test.
func (ts *TestStore[S, A]) Send(action A, assertState func(S)) {
	ts.t.Helper()
	ts.store.Send(action)
	select {
	case entry := <-ts.received:
		if !assert.ObjectsAreEqual(action, entry.Action) {
			ts.t.Fatalf("storetest: expected the turn for sent action %+v, got unconsumed action %+v; consume it with Receive first",
				action, entry.Action)
		}
		if assertState != nil {
			assertState(entry.After)
		}
	default:
		ts.t.Fatalf("storetest: no turn recorded for sent action %+v", action)
	}
}

// Receive waits for the next effect-delivered action, asserts it equals
// expected, and passes the state after its turn to the assertion.
func (ts *TestStore[S, A]) Receive(expected A, assertState func(S)) {
	ts.t.Helper()
	select {
	case entry := <-ts.received:
		if !assert.ObjectsAreEqual(expected, entry.Action) {
			ts.t.Fatalf("storetest: received action %+v, expected %+v", entry.Action, expected)
		}
		if assertState != nil {
			assertState(entry.After)
		}
	case <-time.After(ts.timeout):
		ts.t.Fatalf("storetest: timed out after %v waiting for action %+v", ts.timeout, expected)
	}
}

// ReceiveNothing asserts that no follow-up action arrives within the grace
// period.
func (ts *TestStore[S, A]) ReceiveNothing(grace time.Duration) {
	ts.t.Helper()
	select {
	case entry := <-ts.received:
		ts.t.Fatalf("storetest: expected no action, received %+v", entry.Action)
	case <-time.After(grace):
	}
}

// Finish fails on unconsumed follow-up actions, then closes the store.
func (ts *TestStore[S, A]) Finish() {
	ts.t.Helper()
	select {
	case entry := <-ts.received:
		ts.t.Fatalf("storetest: unconsumed action at finish: %+v", entry.Action)
	case <-time.After(50 * time.Millisecond):
	}
	ts.store.Close()
}

// Transcript returns the ordered log of completed turns so far.
func (ts *TestStore[S, A]) Transcript() []Entry[S, A] {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	out := make([]Entry[S, A], len(ts.transcript))
	copy(out, ts.transcript)
	return out
}
