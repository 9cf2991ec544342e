package objpool

import "errors"

// ErrDoubleRecycle is the value Recycle panics with when a Handle is recycled
// twice without an intervening Get. It indicates a programming error in the
// caller: a pooled object handed back to a Pool must not be used, or
// recycled again, after Recycle returns.
var ErrDoubleRecycle = errors.New("objpool: handle recycled twice without an intervening get")

// ErrStateInvariant is the value a Stack's pop panics with when the handle
// it takes has a recycle_id different from its last_recycled_id. This
// indicates corruption of the handle's bookkeeping fields, most likely
// caused by a Handle being shared in a way that violates the "at most one
// container" invariant. A transfer that observes a handle whose recycle_id
// is neither zero nor equal to its last_recycled_id does not raise it: the
// affected slot is silently dropped and the rest of the batch is unaffected.
var ErrStateInvariant = errors.New("objpool: handle failed recycle id invariant check during transfer")

// errAlienHandle is an internal sentinel: recycle(handle) was invoked via a
// Pool that did not issue the handle. spec section 7 describes this as a
// silently-ignored condition; this implementation instead panics (see
// Pool.Recycle), treating it as a programmer error rather than a recoverable
// one — see DESIGN.md for the rationale.
var errAlienHandle = errors.New("objpool: handle does not belong to this pool")
