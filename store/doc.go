// Package store is the concurrency core of tca-kit: a typed container that
// holds application state, accepts discrete actions, routes them through a
// pure reducer, and schedules the asynchronous effects the reducer returns.
//
// # Model
//
// One logical mutator, many concurrent effect tasks. Every reducer call in
// a store tree runs under a single mutex, so two sends never interleave
// partial mutations. Effect operations, once launched, run concurrently
// with each other and with future sends; only their completion path —
// feeding a follow-up action back into Send — re-enters the serialized
// region. A follow-up is therefore never delivered inside the reducer call
// frame that produced its effect.
//
// # Cancellation
//
// Effects may carry a cancellation id: an opaque slot under which at most
// one task is registered at a time. A later effect under the same id with
// cancel-in-flight set supersedes the running task, whose result — if it
// completes at all — is discarded. A pure cancellation request cancels the
// slot's task and starts nothing; an unknown id is a silent no-op. Closing
// a store cancels every outstanding task it owns.
//
// # Scoping
//
// Scope derives a child store whose state is a live projection of the
// parent's and whose actions embed into parent actions. Parent and child
// share one serialization point, so a child read after a parent send always
// observes the freshly projected state.
package store
