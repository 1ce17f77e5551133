package store

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// slotKey collapses an opaque cancellation id into a fixed-width table key.
// The type name is mixed into the hashed string so ids of distinct types
// with the same textual form land in distinct slots.
func slotKey(id any) uint64 {
	return xxhash.Sum64String(fmt.Sprintf("%T:%v", id, id))
}

func newTaskID() string {
	return uuid.New().String()
}

// task is one launched effect operation. All fields except cancel are
// written only with the core mutex held.
type task struct {
	id        string
	slot      uint64
	keyed     bool
	cancel    context.CancelFunc
	cancelled bool
}

// registry is a store's table of live tasks. Invariant: at most one task is
// registered per slot at any time. Superseded tasks leave the slot but stay
// in the live set until their goroutine finishes, so Close can still reach
// them. Every method must be called with the core mutex held.
type registry struct {
	id    string
	slots map[uint64]*task
	anon  *task
	live  map[*task]struct{}
}

func newRegistry() *registry {
	return &registry{
		id:    uuid.New().String(),
		slots: make(map[uint64]*task),
		live:  make(map[*task]struct{}),
	}
}

// register makes the task live and, when keyed, installs it in its slot.
// Any previous occupant of the slot has been dealt with by the caller.
func (r *registry) register(t *task) {
	r.live[t] = struct{}{}
	if t.keyed {
		r.slots[t.slot] = t
	}
}

// cancelSlot cancels and deregisters the task under the given slot.
// Unknown slots are a silent no-op.
func (r *registry) cancelSlot(slot uint64, logger *zap.Logger) {
	t, ok := r.slots[slot]
	if !ok {
		return
	}
	t.cancelled = true
	t.cancel()
	delete(r.slots, slot)
	logger.Debug("cancelled in-flight task",
		zap.String("registry", r.id),
		zap.String("task", t.id),
	)
}

// cancelAnon cancels the current anonymous task, if any. Only used under
// the exclusive-anonymous-task policy.
func (r *registry) cancelAnon(logger *zap.Logger) {
	if r.anon == nil {
		return
	}
	r.anon.cancelled = true
	r.anon.cancel()
	logger.Debug("cancelled anonymous task",
		zap.String("registry", r.id),
		zap.String("task", r.anon.id),
	)
	r.anon = nil
}

// finish removes a completed task. The slot is released only if the task
// still occupies it; a superseding task may have taken it over.
func (r *registry) finish(t *task) {
	delete(r.live, t)
	if t.keyed && r.slots[t.slot] == t {
		delete(r.slots, t.slot)
	}
	if r.anon == t {
		r.anon = nil
	}
}

// cancelAll cancels every live task, including superseded ones that no
// longer hold a slot.
func (r *registry) cancelAll(logger *zap.Logger) {
	for t := range r.live {
		t.cancelled = true
		t.cancel()
	}
	if n := len(r.live); n > 0 {
		logger.Debug("cancelled all tasks",
			zap.String("registry", r.id),
			zap.Int("count", n),
		)
	}
	clear(r.slots)
	r.anon = nil
}
