package objpool

import (
	"context"
	"sync"
	"sync/atomic"
	"weak"
)

// nextQueueID mints unique identities for HandoffQueues, used as the CAS
// target when a foreign producer claims a handle (spec section 4.3).
var nextQueueID atomic.Int64

func newQueueID() int64 {
	// ids start at 1 so 0 is reserved for idUnowned.
	return nextQueueID.Add(1)
}

// producerToken represents a producer goroutine's continued participation
// in a Pool. A HandoffQueue holds only a weak.Pointer to its producer's
// token (never a strong reference), so that once the token is no longer
// kept alive elsewhere, the queue can detect the producer is gone (spec
// section 3/9: "no strong reference to its home Stack"/weak bookkeeping,
// generalized here to the producer side as well, per section 4.4's
// "producer thread is dead" scavenging rule).
//
// Go has no goroutine-exit hook, so a token's strong reference is kept
// alive for the lifetime of the context.Context passed to the producer's
// Pool.Get/Pool.GetContext call that registered it (see registry.token; a
// later call while the token is still registered does not rebind it); a
// producer goroutine that only ever calls Handle.Recycle, and never Get,
// has no context to anchor a token's lifetime to, so its token is treated
// as immortal (never proactively detected as dead — see DESIGN.md).
type producerToken struct {
	id int64
}

// registry is the per-Pool bookkeeping described in spec section 3/4.5:
// an owner registry (goroutine id -> home Stack) and a foreign registry
// (producer goroutine id -> {home Stack (weak) -> HandoffQueue}).
type registry[T any] struct {
	owners sync.Map // int64 -> *Stack[T]

	tokens sync.Map // int64 -> *producerToken, strong, context-scoped

	foreign sync.Map // int64 -> *foreignEntry[T]

	maxDelayedQueues int
}

type foreignEntry[T any] struct {
	mu     sync.Mutex
	queues map[weak.Pointer[Stack[T]]]*HandoffQueue[T]
}

// ownerStack returns (creating if absent) the Stack owned by the calling
// goroutine (id) for this Pool, per spec section 4.5: "lazily created".
func (r *registry[T]) ownerStack(id int64, newStack func() *Stack[T]) *Stack[T] {
	if v, ok := r.owners.Load(id); ok {
		return v.(*Stack[T])
	}
	s := newStack()
	actual, loaded := r.owners.LoadOrStore(id, s)
	if loaded {
		return actual.(*Stack[T])
	}
	return s
}

// forgetOwner removes a goroutine's home Stack from the owner registry,
// standing in for "Stack destroyed when owner goroutine ends" (spec
// section 3 "Lifecycles").
func (r *registry[T]) forgetOwner(id int64) {
	r.owners.Delete(id)
}

// token returns (creating if absent) this goroutine's producerToken, and
// arranges for it to be forgotten when ctx is done, via context.AfterFunc —
// our substitute for "thread end" (see SPEC_FULL.md).
func (r *registry[T]) token(ctx context.Context, id int64) weak.Pointer[producerToken] {
	if v, ok := r.tokens.Load(id); ok {
		return weak.Make(v.(*producerToken))
	}
	tok := &producerToken{id: id}
	actual, loaded := r.tokens.LoadOrStore(id, tok)
	tok = actual.(*producerToken)
	if !loaded && ctx != nil {
		context.AfterFunc(ctx, func() {
			r.tokens.CompareAndDelete(id, tok)
		})
	}
	return weak.Make(tok)
}

// immortalToken is used when a producer goroutine never called Get/bound a
// context: it has no teardown hook, so it is never proactively detected as
// dead (see producerToken's doc comment).
func (r *registry[T]) immortalToken(id int64) weak.Pointer[producerToken] {
	return r.token(nil, id)
}

// queueFor returns the HandoffQueue a producer (id) should enqueue onto,
// for returns bound for home, creating it if room exists, or the dummy
// sentinel if the registry is full (spec section 4.4 pushLater). create
// may report !ok for a transient failure (shared-capacity denial): in that
// case nothing is cached, so a later recycle can retry once capacity frees
// up, unlike the permanent dummy sentinel installed for registry overflow.
func (r *registry[T]) queueFor(id int64, home *Stack[T], dummy *HandoffQueue[T], create func() (*HandoffQueue[T], bool)) *HandoffQueue[T] {
	v, _ := r.foreign.LoadOrStore(id, &foreignEntry[T]{queues: make(map[weak.Pointer[Stack[T]]]*HandoffQueue[T])})
	entry := v.(*foreignEntry[T])

	key := weak.Make(home)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// weak keys become collectible once the home Stack dies; opportunistically
	// drop any whose Stack is already gone, bounding growth per spec 4.5.
	for k := range entry.queues {
		if k != key && k.Value() == nil {
			delete(entry.queues, k)
		}
	}

	if q, ok := entry.queues[key]; ok {
		return q
	}
	if len(entry.queues) >= r.maxDelayedQueues {
		entry.queues[key] = dummy
		return dummy
	}
	q, ok := create()
	if !ok {
		return nil
	}
	entry.queues[key] = q
	return q
}
