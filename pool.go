package objpool

import (
	"context"
	"sync/atomic"
	"weak"

	"github.com/joeycumines/go-objpool/internal/gid"
)

// Pool is a thread-local object pool with cross-thread recycling, per spec
// section 2/3: "thread" is realized throughout as a goroutine. Construct one
// with NewPool; a Pool is safe for concurrent use by any number of
// goroutines, each of which transparently gets its own home Stack.
type Pool[T any] struct {
	cfg     Config
	factory func() T
	logger  *Logger

	registry *registry[T]

	// dummyQueue is the sentinel HandoffQueue installed in place of a real
	// one once a producer goroutine's delayed-queue registry is full (spec
	// section 4.5): enqueuing onto it is never attempted (Stack.pushLater
	// checks identity first and drops instead), it exists only so the
	// registry has a distinct, comparable value to cache per producer.
	dummyQueue *HandoffQueue[T]
}

// NewPool constructs a Pool whose Get falls back to factory whenever no
// recycled object is available. factory must not be nil.
func NewPool[T any](factory func() T, opts ...Option) *Pool[T] {
	if factory == nil {
		panic("objpool: factory must not be nil")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.resolve()

	p := &Pool[T]{
		cfg:     cfg,
		factory: factory,
		logger:  cfg.Logger,
	}
	p.registry = &registry[T]{maxDelayedQueues: cfg.MaxDelayedQueuesPerThread}
	// the dummy's own fields (capacity counter, producer) are never touched,
	// since nothing ever calls enqueue/transfer on it; only its identity is
	// compared against.
	p.dummyQueue = newHandoffQueue[T](0, weak.Pointer[producerToken]{}, new(atomic.Int64), cfg.LinkCapacity, cfg.DelayedQueueInterval)
	return p
}

// Get is equivalent to GetContext(context.Background()): the returned
// Handle's home Stack will never proactively unbind on goroutine exit,
// since a background context is never Done (spec section 3 "Lifecycles"
// notes this is a best-effort substitute for true thread-death detection).
func (p *Pool[T]) Get() *Handle[T] {
	return p.GetContext(context.Background())
}

// GetContext returns a Handle wrapping either a recycled object or a freshly
// constructed one (spec section 4.1 "Get"). ctx, if non-nil and cancelable,
// is used (once per calling goroutine) to bind this goroutine's home Stack
// lifetime via context.AfterFunc, standing in for "owner goroutine ends"
// (spec section 3 "Lifecycles"; see SPEC_FULL.md for the substitution
// rationale).
//
// If MaxCapacityPerThread is 0, the pool is disabled (spec section 4.1
// "Pool disabled"): Get always allocates a fresh object, and the returned
// Handle's Recycle is a permanent no-op.
func (p *Pool[T]) GetContext(ctx context.Context) *Handle[T] {
	if p.cfg.MaxCapacityPerThread == 0 {
		return p.newHandle(p.factory())
	}

	id := gid.Current()
	stack := p.registry.ownerStack(id, func() *Stack[T] { return newStack(p, id) })

	if ctx != nil && stack.teardownBound.CompareAndSwap(false, true) {
		context.AfterFunc(ctx, func() { p.registry.forgetOwner(id) })
	}

	// anchor this goroutine's producer token (used when it recycles
	// elsewhere, as a foreign producer) to ctx, so a later pushLater from
	// this same goroutine finds a context-bound token instead of minting
	// an immortal one (see registry.token's doc comment).
	p.registry.token(ctx, id)

	if h, ok := stack.pop(); ok {
		return h
	}
	p.logger.Debug().Int64("owner", id).Log("objpool: stack empty, allocating")
	h := p.newHandle(p.factory())
	// a freshly constructed handle must still be bound to the calling
	// goroutine's home Stack, so a later Recycle (direct or queued) has
	// somewhere to return it to — only the disabled-pool path above
	// leaves a handle permanently unbound.
	h.stack.Store(stack)
	return h
}

// Recycle is a convenience wrapper equivalent to handle.Recycle(), except it
// additionally panics with errAlienHandle if handle was not issued by p —
// recycling a Handle through a Pool other than the one that created it is a
// programmer error, not a runtime condition callers should need to check for.
func (p *Pool[T]) Recycle(handle *Handle[T]) {
	if handle.pool != p {
		panic(errAlienHandle)
	}
	handle.Recycle()
}

func (p *Pool[T]) newHandle(obj T) *Handle[T] {
	return &Handle[T]{Object: obj, pool: p}
}
