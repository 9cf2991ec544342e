package objpool

import "sync/atomic"

// Handle is the pool's per-object metadata wrapper, per spec section 3/4.2.
// It carries a pooled object back to its home Stack, and is the unit of
// bookkeeping that enforces at-most-once recycling (property P1).
//
// recycleID is zero whenever the handle is not canonically resident in its
// home Stack — that covers both "checked out to a caller" and "enqueued in
// a HandoffQueue, pending transfer". lastRecycledID is the CAS guard: it
// records which container (the owner goroutine, or a HandoffQueue id) most
// recently won the right to return this handle, and is the single source
// of truth used to detect a double recycle on either the direct or the
// queued path (spec section 7).
type Handle[T any] struct {
	// Object is the pooled value this handle carries. Set once, by the
	// Pool that constructs it, and never reassigned.
	Object T

	pool *Pool[T]
	// stack is the handle's home Stack: the Stack it returns to on
	// recycle. Cleared by a HandoffQueue producer just before the handle
	// becomes visible to the consumer, and rebound by the consumer after
	// observing it in transfer (spec section 9's "stack==nil briefly"
	// tolerance).
	stack atomic.Pointer[Stack[T]]

	recycleID      atomic.Int64
	lastRecycledID atomic.Int64

	// beenSampled implements the per-handle half of admission sampling
	// (spec section 4.4 "Admission sampling"): once a handle is sampled
	// in, by any Stack or HandoffQueue's counter, it is always kept
	// thereafter. The counters themselves live on the Stack and on each
	// HandoffQueue (spec section 3: "an admission counter mirroring the
	// Stack's"), not here, since each is driven by a single goroutine.
	beenSampled atomic.Bool
}

// idUnowned is the sentinel recycleID/lastRecycledID value meaning "not
// currently claimed by any container".
const idUnowned int64 = 0

// Recycle returns the handle to its home Stack: directly, if the calling
// goroutine owns that Stack (the fast path), otherwise via a HandoffQueue
// (the slow, cross-goroutine path). It panics with ErrDoubleRecycle if
// called twice without an intervening Get (spec section 4.2/7): the check
// is the CAS on lastRecycledID, shared by both paths, so a repeat recycle
// is caught identically regardless of which path served the first call.
func (h *Handle[T]) Recycle() {
	stack := h.stack.Load()
	if stack == nil {
		// a handle already claimed by a HandoffQueue has its stack cleared;
		// only a never-claimed handle (disabled pool) is a no-op here.
		if h.lastRecycledID.Load() != idUnowned {
			panic(ErrDoubleRecycle)
		}
		return
	}
	stack.push(h)
}

// claim attempts to take ownership of this handle's return for id
// (a goroutine id on the direct path, or a HandoffQueue's id on the queued
// path). Returns false if some other container already claimed it since
// the last Get/transfer — which, under correct single-owner usage, can only
// mean the handle is being recycled twice.
func (h *Handle[T]) claim(id int64) bool {
	return h.lastRecycledID.CompareAndSwap(idUnowned, id)
}

// admit applies admission sampling (spec section 4.4 "dropHandle") to h,
// using counter (owned exclusively by the calling goroutine: the Stack's
// owner, or a HandoffQueue's single producer). A freshly-returned,
// never-sampled handle is kept only once every (interval+1) novel
// returns — matching spec section 8 property P5's `ceil(N/(interval+1))`
// growth bound exactly: counter counts drops, and only the call that
// finds counter already at interval is admitted. Once any container
// samples a handle in, it is always kept thereafter. interval <= 0
// disables filtering (always admit). Returns true if h should be
// admitted to its container.
func admit[T any](h *Handle[T], counter *int32, interval int32) bool {
	if interval <= 0 || h.beenSampled.Load() {
		return true
	}
	if *counter < interval {
		*counter++
		return false
	}
	*counter = 0
	h.beenSampled.Store(true)
	return true
}
