package store

import (
	"go.uber.org/zap"

	"github.com/ronstorm/tca-kit/effect"
)

// Scope derives a child store from parent. The child's visible state is
// always project applied to the parent's live state, so there is no
// staleness window between a parent mutation and a child read. The child's
// Send embeds the child action via embed and runs the parent's reducer
// against the parent's state; any resulting effect stays on the parent's
// own effect-resolution path.
//
// The child holds a non-owning handle: closing the child cancels only the
// work the child started, while closing the root tears down the whole tree.
func Scope[PS, PA, CS, CA any](
	parent *Store[PS, PA],
	project func(PS) CS,
	embed func(CA) PA,
) *Store[CS, CA] {
	return scoped(parent, project, embed, nil)
}

// ScopeExtract is Scope with a parent-to-child action extraction: actions
// produced by the effect of an embedded child action are mapped through
// extract back into child actions and re-enter through the child. Actions
// the extraction rejects resolve to no action for the child. Cancellation
// metadata crosses the boundary unchanged, keyed in the child's own table.
func ScopeExtract[PS, PA, CS, CA any](
	parent *Store[PS, PA],
	project func(PS) CS,
	embed func(CA) PA,
	extract func(PA) (CA, bool),
) *Store[CS, CA] {
	return scoped(parent, project, embed, extract)
}

func scoped[PS, PA, CS, CA any](
	parent *Store[PS, PA],
	project func(PS) CS,
	embed func(CA) PA,
	extract func(PA) (CA, bool),
) *Store[CS, CA] {
	c := parent.core
	child := &Store[CS, CA]{
		core: c,
		reg:  newRegistry(),
		subs: make(map[uint64]chan CS),
	}
	child.stateLocked = func() CS {
		return project(parent.stateLocked())
	}
	if extract == nil {
		child.turnLocked = func(ca CA) effect.Effect[CA] {
			eff := parent.turnLocked(embed(ca))
			parent.scheduleLocked(eff)
			return effect.None[CA]()
		}
	} else {
		child.turnLocked = func(ca CA) effect.Effect[CA] {
			eff := parent.turnLocked(embed(ca))
			return effect.Map(eff, extract)
		}
	}

	c.mu.Lock()
	c.attachLocked(child.reg, child.pushSnapshotsLocked, child.closeSubsLocked)
	if c.closed {
		child.closed = true
	}
	c.mu.Unlock()

	c.logger.Debug("store scoped",
		zap.String("parent", parent.reg.id),
		zap.String("child", child.reg.id),
	)
	return child
}
