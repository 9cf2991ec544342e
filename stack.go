package objpool

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-objpool/internal/gid"
)

// Stack is the per-goroutine LIFO of free handles, per spec section 3/4.4:
// the "thread" of the original design is realized here as a goroutine,
// identified by internal/gid.
//
// elements and size are touched only by the owner goroutine; head (the
// entry point into the chain of inbound HandoffQueues) is mutated only
// under mu, but read by the owner without locking.
type Stack[T any] struct {
	pool    *Pool[T]
	ownerID int64

	elements []*Handle[T]
	size     int

	maxCapacity    int32
	sharedCapacity atomic.Int64 // budget of inbound handoff slots, spec 4.4
	interval       int32        // admission interval, this Stack's side
	sampleCount    int32        // owner-goroutine-only counter

	mu   sync.Mutex
	head atomic.Pointer[HandoffQueue[T]]

	// teardownBound is set once this Stack has registered its
	// context.AfterFunc teardown hook with the registry (spec section 3
	// "Lifecycles": "Stack destroyed when owner goroutine ends").
	teardownBound atomic.Bool

	// cursor/prev cache scavenging progress between calls to get(),
	// per spec section 3 "Stack" / section 4.4 "scavenge".
	cursor, prev *HandoffQueue[T]
}

func newStack[T any](p *Pool[T], ownerID int64) *Stack[T] {
	s := &Stack[T]{
		pool:        p,
		ownerID:     ownerID,
		maxCapacity: p.cfg.MaxCapacityPerThread,
		interval:    p.cfg.Interval,
	}
	budget := s.maxCapacity / p.cfg.SharedCapacityFactor
	if budget < p.cfg.LinkCapacity {
		budget = p.cfg.LinkCapacity
	}
	s.sharedCapacity.Store(int64(budget))
	p.logger.Debug().Int64("owner", ownerID).Int("max_capacity", int(s.maxCapacity)).Log("objpool: stack created")
	return s
}

// pop removes and returns a handle from the top of the Stack, per spec
// section 4.4. If empty, it scavenges inbound HandoffQueues and retries
// once; if still empty, it returns (nil, false) so Pool.Get can fall back
// to the factory.
func (s *Stack[T]) pop() (*Handle[T], bool) {
	if s.size == 0 {
		if !s.scavenge() {
			return nil, false
		}
	}
	s.size--
	h := s.elements[s.size]
	s.elements[s.size] = nil

	recycleID := h.recycleID.Load()
	lastRecycledID := h.lastRecycledID.Load()
	if recycleID != lastRecycledID {
		panic(ErrStateInvariant)
	}
	h.recycleID.Store(idUnowned)
	h.lastRecycledID.Store(idUnowned)
	h.stack.Store(s)
	return h, true
}

// push returns h to its home Stack s: directly, if the calling goroutine
// is s's owner, otherwise via a HandoffQueue (spec section 4.4 "push").
func (s *Stack[T]) push(h *Handle[T]) {
	if gid.Current() == s.ownerID {
		s.pushNow(h)
		return
	}
	s.pushLater(h)
}

// pushNow is the same-goroutine fast path (spec section 4.4).
func (s *Stack[T]) pushNow(h *Handle[T]) {
	if !h.claim(s.ownerID) {
		panic(ErrDoubleRecycle)
	}
	h.recycleID.Store(s.ownerID)

	if !admit(h, &s.sampleCount, s.interval) {
		return
	}
	s.store(h)
}

// pushLater is the cross-goroutine slow path (spec section 4.4): it looks
// up (creating if needed) this goroutine's HandoffQueue for s, and
// enqueues h onto it.
func (s *Stack[T]) pushLater(h *Handle[T]) {
	producerID := gid.Current()
	reg := s.pool.registry

	q := reg.queueFor(producerID, s, s.pool.dummyQueue, func() (*HandoffQueue[T], bool) {
		if !reserveCapacity(&s.sharedCapacity, s.pool.cfg.LinkCapacity) {
			// transient: queueFor will not cache this, so a later recycle
			// can retry once the home Stack's shared capacity frees up.
			return nil, false
		}
		token := reg.immortalToken(producerID)
		q := newHandoffQueue[T](newQueueID(), token, &s.sharedCapacity, s.pool.cfg.LinkCapacity, s.pool.cfg.DelayedQueueInterval)
		s.linkQueue(q)
		s.pool.logger.Debug().Int64("producer", producerID).Int64("owner", s.ownerID).Log("objpool: handoff queue created")
		return q, true
	})

	if q == nil || q == s.pool.dummyQueue {
		// dropped without reaching a queue: still claim it, so a repeat
		// recycle of the same handle panics like on every other path.
		if !h.claim(producerID) {
			panic(ErrDoubleRecycle)
		}
		return
	}

	ok, err := q.enqueue(h)
	if err != nil {
		panic(err)
	}
	_ = ok
}

// linkQueue inserts q at the head of s's chain of inbound HandoffQueues, under mu, per
// spec section 5 "the only locks are (a) a per-Stack mutex serializing
// set_head".
func (s *Stack[T]) linkQueue(q *HandoffQueue[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if head := s.head.Load(); head == nil {
		s.head.Store(q)
	} else {
		q.next.Store(head)
		s.head.Store(q)
	}
}

// store appends h directly to elements, growing (doubling, capped at
// maxCapacity) as needed, per spec section 4.4 "Capacity arithmetic".
// Returns true iff h was actually stored (false if the Stack is full).
func (s *Stack[T]) store(h *Handle[T]) bool {
	if int32(s.size) >= s.maxCapacity {
		return false
	}
	if s.size == len(s.elements) {
		newCap := len(s.elements) * 2
		if newCap == 0 {
			newCap = 1
		}
		if int32(newCap) > s.maxCapacity {
			newCap = int(s.maxCapacity)
		}
		if newCap <= s.size {
			return false
		}
		grown := make([]*Handle[T], newCap)
		copy(grown, s.elements)
		s.elements = grown
	}
	h.stack.Store(s)
	s.elements[s.size] = h
	s.size++
	return true
}

// scavenge walks s's chain of HandoffQueues, transferring a batch from the
// first queue with data, per spec section 4.4. It resumes from the cached
// cursor across calls, and reclaims queues whose producer has died.
func (s *Stack[T]) scavenge() bool {
	if s.cursor == nil {
		s.cursor = s.head.Load()
		s.prev = nil
	}

	for s.cursor != nil {
		q := s.cursor
		if q.transfer(s) {
			return true
		}

		if !q.producerAlive() && s.prev != nil {
			// Spec section 4.4: "Never unlink the first queue (avoids
			// synchronization on head)." Drain whatever final data a
			// dying producer left, then unlink and refund capacity.
			// Looping on transfer's "grew" result would stop early
			// whenever a batch is read but dropped (sampling/capacity),
			// so loop to a fixed point on read progress instead.
			for {
				head := q.head.Load()
				idx := head.readIndex
				q.transfer(s)
				if q.head.Load() == head && head.readIndex == idx {
					break
				}
			}
			next := q.next.Load()
			s.prev.next.Store(next)
			s.cursor = next
			drainedLinks := countLinks(q)
			refundCapacity(q.sharedCapacity, q.linkCapacity*int32(drainedLinks))
			continue
		}

		s.prev = q
		s.cursor = q.next.Load()
	}

	// exhausted the chain; reset for next call.
	s.cursor = s.head.Load()
	s.prev = nil
	return false
}

func countLinks[T any](q *HandoffQueue[T]) int {
	n := 0
	for l := q.head.Load(); l != nil; l = l.next.Load() {
		n++
	}
	return n
}
