package objpool

import (
	"sync/atomic"
	"weak"
)

// HandoffQueue is the singly-linked list of Links carrying cross-goroutine
// recycles back to one home Stack, per spec section 3/4.3. There is one
// HandoffQueue per (foreign producer goroutine, home Stack) pair; it is
// written by exactly one producer and read by exactly one consumer (the
// home Stack's owner goroutine), so despite being "multi-producer" at the
// Pool level (many foreign goroutines, many queues), each individual queue
// is single-producer/single-consumer.
//
// A HandoffQueue holds no strong reference to its home Stack — only to the
// Stack's shared-capacity counter — so that a Stack whose owner goroutine
// has gone away can still be collected even while foreign goroutines hold
// queues that (transitively) used to belong to it (spec section 3/9).
type HandoffQueue[T any] struct {
	id int64

	// producer is a weak reference to a token kept alive only while the
	// producer goroutine's bound context (if any) remains live; once it
	// resolves to nil, Stack.scavenge treats the producer as dead.
	producer weak.Pointer[producerToken]

	// sharedCapacity is the home Stack's inbound-slot budget (spec
	// section 4.4 "Capacity arithmetic"); reservations/refunds touch
	// only this counter, never the Stack itself.
	sharedCapacity *atomic.Int64

	linkCapacity int32
	interval     int32 // delayed_queue_interval (spec section 6)
	sampleCount  int32 // owned exclusively by this queue's single producer

	head atomic.Pointer[link[T]] // oldest Link; consumer-owned
	tail atomic.Pointer[link[T]] // newest Link; producer-owned

	// next links this queue into its home Stack's chain of queues.
	next atomic.Pointer[HandoffQueue[T]]
}

func newHandoffQueue[T any](id int64, producer weak.Pointer[producerToken], sharedCapacity *atomic.Int64, linkCapacity int32, interval int32) *HandoffQueue[T] {
	first := newLink[T](int(linkCapacity))
	q := &HandoffQueue[T]{
		id:             id,
		producer:       producer,
		sharedCapacity: sharedCapacity,
		linkCapacity:   linkCapacity,
		interval:       interval,
	}
	q.head.Store(first)
	q.tail.Store(first)
	return q
}

// producerAlive reports whether this queue's producer goroutine is still
// reachable via its bound context (see producerToken). A queue whose
// producer never bound a context (only ever called Handle.Recycle, never
// Pool.Get) is always reported alive, per registry.token's doc comment.
func (q *HandoffQueue[T]) producerAlive() bool {
	return q.producer.Value() != nil
}

// enqueue implements the four-step producer-side protocol of spec section
// 4.3. Returns true if h was admitted into the queue; false if it was
// dropped (admission sampling, or shared-capacity denial) or claimed by
// someone else concurrently (true double recycle).
func (q *HandoffQueue[T]) enqueue(h *Handle[T]) (bool, error) {
	if !h.claim(q.id) {
		return false, ErrDoubleRecycle
	}

	if !admit(h, &q.sampleCount, q.interval) {
		return false, nil
	}

	tail := q.tail.Load()
	if tail.full() {
		if !reserveCapacity(q.sharedCapacity, q.linkCapacity) {
			return false, nil
		}
		next := newLink[T](int(q.linkCapacity))
		tail.next.Store(next)
		q.tail.Store(next)
		tail = next
	}

	// handle is no longer canonically owned by its (former) home Stack;
	// the consumer rebinds this once it observes h during transfer.
	h.stack.Store(nil)
	tail.append(h)
	return true, nil
}

// transfer moves a batch of handles from this queue's head Link into dst,
// per spec section 4.3 "A home Stack dequeues by transfer". It must only
// be called by dst's owner goroutine. Returns true iff dst's size grew.
func (q *HandoffQueue[T]) transfer(dst *Stack[T]) bool {
	head := q.head.Load()
	if head.consumed() {
		next := head.next.Load()
		if next == nil {
			return false
		}
		refundCapacity(q.sharedCapacity, q.linkCapacity)
		q.head.Store(next)
		head = next
	}

	end := head.loadWriteCount() // acquire
	grew := false
	for head.readIndex < end {
		h := head.slots[head.readIndex]
		head.slots[head.readIndex] = nil
		head.readIndex++

		recycleID := h.recycleID.Load()
		lastRecycledID := h.lastRecycledID.Load()
		if recycleID != idUnowned && recycleID != lastRecycledID {
			// spec section 4.3/7 StateInvariant: corruption, drop this
			// slot only, continue with the rest of the batch.
			continue
		}
		h.recycleID.Store(lastRecycledID)

		if !admit(h, &dst.sampleCount, dst.interval) {
			continue
		}
		if dst.store(h) {
			grew = true
		}
	}
	return grew
}

// reserveCapacity atomically subtracts n from the shared counter, refusing
// (without blocking) if that would take it below zero (spec section 4.4
// "Capacity arithmetic": "Reservations ... fail the operation rather than
// blocking").
func reserveCapacity(shared *atomic.Int64, n int32) bool {
	for {
		cur := shared.Load()
		if cur < int64(n) {
			return false
		}
		if shared.CompareAndSwap(cur, cur-int64(n)) {
			return true
		}
	}
}

func refundCapacity(shared *atomic.Int64, n int32) {
	shared.Add(int64(n))
}
