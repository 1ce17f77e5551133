package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ronstorm/tca-kit/deps"
	"github.com/ronstorm/tca-kit/effect"
)

// Reducer is the pure, synchronous state transition: given the current
// state, an action, and dependencies, mutate the state in place and return
// the effect to run next. It must not block or perform I/O; all I/O belongs
// in the effects it returns. A panicking reducer is a programmer error and
// is not recovered.
type Reducer[S, A any] func(state *S, action A, d deps.Dependencies) effect.Effect[A]

// core is the serialization point shared by a root store and every store
// scoped from it: one mutex guards all reducer turns, all task tables, and
// all subscriber bookkeeping in the tree.
type core struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	wg     sync.WaitGroup

	closed        bool
	exclusiveAnon bool

	registries []*registry
	notifiers  map[*registry]func()
	closers    map[*registry]func()
}

// notifyLocked pushes a fresh snapshot to every subscriber in the tree.
// Called once per completed turn, from the root turn.
func (c *core) notifyLocked() {
	for _, notify := range c.notifiers {
		notify()
	}
}

// Store owns application state, serializes action processing through its
// reducer, and schedules the asynchronous effects the reducer returns.
// A store created by Scope shares its parent's core: the parent remains the
// sole owner of the canonical state value and the child is a live view.
type Store[S, A any] struct {
	core   *core
	reg    *registry
	isRoot bool
	closed bool

	subs   map[uint64]chan S
	subSeq uint64

	// stateLocked and turnLocked run with core.mu held. turnLocked performs
	// one reducer call plus subscriber notification and returns the effect
	// for the caller to schedule.
	stateLocked func() S
	turnLocked  func(A) effect.Effect[A]
}

// New constructs a root store.
func New[S, A any](initial S, reducer Reducer[S, A], d deps.Dependencies, opts ...Option) *Store[S, A] {
	cfg := newConfig(opts)
	ctx, cancel := context.WithCancel(context.Background())
	c := &core{
		ctx:           ctx,
		cancel:        cancel,
		logger:        cfg.logger,
		exclusiveAnon: cfg.exclusiveAnon,
		notifiers:     make(map[*registry]func()),
		closers:       make(map[*registry]func()),
	}

	s := &Store[S, A]{
		core:   c,
		reg:    newRegistry(),
		isRoot: true,
		subs:   make(map[uint64]chan S),
	}
	state := initial
	s.stateLocked = func() S { return state }
	s.turnLocked = func(a A) effect.Effect[A] {
		eff := reducer(&state, a, d)
		c.notifyLocked()
		return eff
	}
	c.attachLocked(s.reg, s.pushSnapshotsLocked, s.closeSubsLocked)

	c.logger.Debug("store created", zap.String("store", s.reg.id))
	return s
}

// Simple constructs a root store around a mutator that never schedules
// asynchronous work.
func Simple[S, A any](initial S, mutate func(*S, A), opts ...Option) *Store[S, A] {
	return New(initial, func(s *S, a A, _ deps.Dependencies) effect.Effect[A] {
		mutate(s, a)
		return effect.None[A]()
	}, deps.Live(), opts...)
}

// attachLocked registers a store's notifier and closer with the core.
// Callers during construction own the core exclusively; later callers hold
// the mutex.
func (c *core) attachLocked(reg *registry, notify, closeSubs func()) {
	c.registries = append(c.registries, reg)
	c.notifiers[reg] = notify
	c.closers[reg] = closeSubs
}

// Send runs one full turn: the reducer call against current state, then the
// bookkeeping for whatever effect it returned. Send returns once both
// finish; effect operations run strictly after, on their own goroutines.
// Sends on a closed store are dropped with a warning.
func (s *Store[S, A]) Send(action A) {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || s.closed {
		c.logger.Warn("send on closed store, action dropped", zap.String("store", s.reg.id))
		return
	}
	s.sendLocked(action)
}

func (s *Store[S, A]) sendLocked(a A) {
	s.scheduleLocked(s.turnLocked(a))
}

// State returns a snapshot of the current state. Observers never receive a
// mutable handle into the store.
func (s *Store[S, A]) State() S {
	s.core.mu.Lock()
	defer s.core.mu.Unlock()
	return s.stateLocked()
}

// scheduleLocked dispatches every schedulable leaf of an effect.
func (s *Store[S, A]) scheduleLocked(eff effect.Effect[A]) {
	for _, leaf := range eff.Leaves() {
		s.startLocked(leaf)
	}
}

func (s *Store[S, A]) startLocked(leaf effect.Effect[A]) {
	c := s.core
	if key, keyed := leaf.CancelKey(); keyed {
		slot := slotKey(key)
		if leaf.IsCancelRequest() {
			s.reg.cancelSlot(slot, c.logger)
			return
		}
		if leaf.CancelsInFlight() {
			s.reg.cancelSlot(slot, c.logger)
		}
		s.launchLocked(leaf.Operation(), slot, true)
		return
	}
	if leaf.IsCancelRequest() {
		// Cancellation request without an id: nothing to target.
		return
	}
	if c.exclusiveAnon {
		s.reg.cancelAnon(c.logger)
	}
	s.launchLocked(leaf.Operation(), 0, false)
}

// launchLocked starts the operation as a cancellable background task and
// registers it. The completion path deregisters the task whether or not it
// emitted anything.
func (s *Store[S, A]) launchLocked(op effect.Operation[A], slot uint64, keyed bool) {
	if op == nil {
		return
	}
	c := s.core
	ctx, cancel := context.WithCancel(c.ctx)
	t := &task{slot: slot, keyed: keyed, cancel: cancel}
	t.id = s.reg.id + "/" + newTaskID()
	s.reg.register(t)
	if !keyed && c.exclusiveAnon {
		s.reg.anon = t
	}
	c.logger.Debug("task started", zap.String("task", t.id), zap.Bool("keyed", keyed))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		op(ctx, func(a A) { s.deliver(t, a) })

		c.mu.Lock()
		s.reg.finish(t)
		c.mu.Unlock()
		c.logger.Debug("task finished", zap.String("task", t.id))
	}()
}

// deliver feeds an effect's follow-up action back into the serialized loop.
// A cancelled task's result is discarded here, never handed to the reducer:
// the cancelled flag and the reducer share the same mutex, so there is no
// window in which a stale action can slip through.
func (s *Store[S, A]) deliver(t *task, a A) {
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.cancelled || c.closed || s.closed {
		c.logger.Debug("stale action discarded", zap.String("task", t.id))
		return
	}
	s.sendLocked(a)
}

// Subscribe returns a channel of state snapshots, seeded with the current
// state and fed after every completed turn anywhere in the store tree.
// Snapshots are delivered best-effort: when the subscriber falls behind its
// buffer, intermediate snapshots are dropped with a warning. The returned
// function cancels the subscription and closes the channel. Idempotent.
func (s *Store[S, A]) Subscribe(buffer int) (<-chan S, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan S, buffer)
	c := s.core
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.subSeq
	s.subSeq++
	s.subs[id] = ch
	ch <- s.stateLocked()

	unsubscribe := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// pushSnapshotsLocked fans the current snapshot out to this store's
// subscribers without blocking the turn.
func (s *Store[S, A]) pushSnapshotsLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.stateLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
			s.core.logger.Warn("subscriber sink full, snapshot dropped",
				zap.String("store", s.reg.id))
		}
	}
}

func (s *Store[S, A]) closeSubsLocked() {
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// Close tears the store down. On a root store it cancels every outstanding
// task in the whole tree, closes every subscription, and waits for the task
// goroutines to drain, so no background work survives the store. On a
// scoped store it only cancels the tasks and subscriptions that store owns;
// the parent keeps running. Idempotent.
func (s *Store[S, A]) Close() {
	c := s.core
	c.mu.Lock()
	if s.closed {
		c.mu.Unlock()
		return
	}
	if s.isRoot {
		c.closed = true
		for _, reg := range c.registries {
			reg.cancelAll(c.logger)
		}
		for reg, closeSubs := range c.closers {
			closeSubs()
			delete(c.closers, reg)
			delete(c.notifiers, reg)
		}
	} else {
		s.reg.cancelAll(c.logger)
		s.closeSubsLocked()
		delete(c.closers, s.reg)
		delete(c.notifiers, s.reg)
	}
	c.mu.Unlock()

	if s.isRoot {
		c.cancel()
		c.wg.Wait()
		c.logger.Debug("store closed", zap.String("store", s.reg.id))
	}
}
