package store_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronstorm/tca-kit/deps"
	"github.com/ronstorm/tca-kit/effect"
	"github.com/ronstorm/tca-kit/store"
)

type appState struct {
	counter counterState
	title   string
}

type appAction struct {
	kind    string
	counter counterAction
}

func embedCounter(ca counterAction) appAction {
	return appAction{kind: "counter", counter: ca}
}

func extractCounter(pa appAction) (counterAction, bool) {
	if pa.kind != "counter" {
		return counterAction{}, false
	}
	return pa.counter, true
}

// appReducer delegates counter actions to counterReducer and re-embeds the
// effects it returns.
func appReducer(gates map[int]chan struct{}) store.Reducer[appState, appAction] {
	inner := counterReducer(gates)
	return func(s *appState, a appAction, d deps.Dependencies) effect.Effect[appAction] {
		switch a.kind {
		case "counter":
			eff := inner(&s.counter, a.counter, d)
			return effect.Map(eff, func(ca counterAction) (appAction, bool) {
				return embedCounter(ca), true
			})
		case "rename":
			s.title = "renamed"
			return effect.None[appAction]()
		default:
			return effect.None[appAction]()
		}
	}
}

// The scoped view projects the parent substate, and a scoped
// send updates both views.
func TestScope_ProjectsAndEmbeds(t *testing.T) {
	parent := store.New(appState{counter: counterState{count: 5}}, appReducer(nil), deps.Deterministic())
	defer parent.Close()

	child := store.Scope(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
	)

	assert.Equal(t, 5, child.State().count)

	child.Send(increment())
	assert.Equal(t, 6, child.State().count)
	assert.Equal(t, 6, parent.State().counter.count)
}

// After any parent send that changes the projected substate, the child
// immediately observes the fresh projection.
func TestScope_NoStalenessAfterParentSend(t *testing.T) {
	parent := store.New(appState{}, appReducer(nil), deps.Deterministic())
	defer parent.Close()

	child := store.Scope(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
	)

	for i := 1; i <= 10; i++ {
		parent.Send(embedCounter(increment()))
		assert.Equal(t, i, child.State().count)
	}

	// parent sends not touching the projection leave the child view intact
	parent.Send(appAction{kind: "rename"})
	assert.Equal(t, 10, child.State().count)
}

// Without extraction, effects from embedded actions stay on the parent loop.
func TestScope_EffectResolvesOnParentLoop(t *testing.T) {
	parent := store.New(appState{}, appReducer(nil), deps.Deterministic())
	defer parent.Close()

	child := store.Scope(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
	)

	child.Send(load(9))
	assert.Eventually(t, func() bool {
		return parent.State().counter.lastLoaded == 9
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 9, child.State().lastLoaded)
}

// With extraction, effect output is demoted to child actions and re-enters
// through the child.
func TestScopeExtract_DemotesEffectOutput(t *testing.T) {
	parent := store.New(appState{}, appReducer(nil), deps.Deterministic())
	defer parent.Close()

	child := store.ScopeExtract(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
		extractCounter,
	)

	child.Send(load(4))
	assert.Eventually(t, func() bool {
		return child.State().lastLoaded == 4
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 4, parent.State().counter.lastLoaded)
}

// Cancellation metadata crosses the scope boundary unchanged: the child can
// cancel the task its own load started.
func TestScopeExtract_CancellationCrossesBoundary(t *testing.T) {
	gate := make(chan struct{})
	parent := store.New(appState{}, appReducer(map[int]chan struct{}{3: gate}), deps.Deterministic())
	defer parent.Close()

	child := store.ScopeExtract(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
		extractCounter,
	)

	child.Send(load(3))
	child.Send(cancelLoad())
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, child.State().loadedCount)
}

// Closing a scoped store cancels only the work it started; the parent keeps
// running.
func TestScope_ChildCloseLeavesParentRunning(t *testing.T) {
	gate := make(chan struct{})
	parent := store.New(appState{}, appReducer(map[int]chan struct{}{8: gate}), deps.Deterministic())
	defer parent.Close()

	child := store.ScopeExtract(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
		extractCounter,
	)

	child.Send(load(8))
	child.Close()
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, parent.State().counter.loadedCount)

	parent.Send(embedCounter(increment()))
	assert.Equal(t, 1, parent.State().counter.count)
}

// Closing the root cancels scoped work too, across the whole tree.
func TestScope_RootCloseCancelsChildTasks(t *testing.T) {
	gate := make(chan struct{})
	parent := store.New(appState{}, appReducer(map[int]chan struct{}{6: gate}), deps.Deterministic())

	child := store.ScopeExtract(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
		extractCounter,
	)

	child.Send(load(6))
	parent.Close()
	close(gate)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, child.State().loadedCount)
	assert.NotPanics(t, func() { child.Send(increment()) })
}

// A nested scope composes projections and embeddings transitively.
func TestScope_Nested(t *testing.T) {
	type shellState struct{ app appState }
	type shellAction struct {
		kind string
		app  appAction
	}
	inner := appReducer(nil)
	r := func(s *shellState, a shellAction, d deps.Dependencies) effect.Effect[shellAction] {
		if a.kind != "app" {
			return effect.None[shellAction]()
		}
		eff := inner(&s.app, a.app, d)
		return effect.Map(eff, func(pa appAction) (shellAction, bool) {
			return shellAction{kind: "app", app: pa}, true
		})
	}
	root := store.New(shellState{}, r, deps.Deterministic())
	defer root.Close()

	mid := store.Scope(root,
		func(s shellState) appState { return s.app },
		func(a appAction) shellAction { return shellAction{kind: "app", app: a} },
	)
	leaf := store.Scope(mid,
		func(s appState) counterState { return s.counter },
		embedCounter,
	)

	leaf.Send(increment())
	leaf.Send(increment())
	require.Equal(t, 2, leaf.State().count)
	assert.Equal(t, 2, root.State().app.counter.count)
}

// Scoped subscriptions observe projected snapshots per turn.
func TestScope_SubscribeSeesProjection(t *testing.T) {
	parent := store.New(appState{}, appReducer(nil), deps.Deterministic())
	defer parent.Close()

	child := store.Scope(parent,
		func(s appState) counterState { return s.counter },
		embedCounter,
	)

	snapshots, stop := child.Subscribe(16)
	defer stop()
	assert.Equal(t, 0, (<-snapshots).count)

	parent.Send(embedCounter(increment()))
	assert.Equal(t, 1, (<-snapshots).count)
}
