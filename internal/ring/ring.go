// Package ring implements the bounded lock-free SPSC ring used to hand
// captured audio chunks from the real-time capture thread to the
// non-real-time event-loop thread.
//
// Unlike a byte ring (pkg/ringbuffer in the teacher musictools module, from
// which the atomic head/tail masking technique here is grounded), this ring
// never copies a value across the producer/consumer boundary. Slots are
// constructed once at New and refilled in place: Enqueue hands the
// producer a mutable reference to the next free slot, Dequeue hands the
// consumer a readable reference to the next filled slot. This is what
// makes the ring real-time safe — no allocation, no copy, no locking on
// the hot path.
package ring

import (
	"sync/atomic"

	"github.com/drgolem/roomcast/internal/chunk"
)

// Ring is a single-producer/single-consumer bounded ring of *chunk.Chunk
// slots. Capacity is rounded up to a power of two so that index wrapping
// is a mask instead of a modulo.
type Ring struct {
	slots []*chunk.Chunk
	mask  uint64

	head atomic.Uint64 // next slot the producer will fill; producer-owned
	tail atomic.Uint64 // next slot the consumer will drain; consumer-owned

	overflows atomic.Uint64
}

// New creates a ring with the given slot capacity (rounded up to the next
// power of two), allocating every slot with slotCapacityBytes of fixed
// byte capacity. Slots are allocated once, at construction — never
// again — which is why slot capacity must be chosen up front.
func New(capacity int, slotCapacityBytes int) *Ring {
	n := nextPowerOf2(capacity)
	r := &Ring{
		slots: make([]*chunk.Chunk, n),
		mask:  uint64(n) - 1,
	}
	for i := range r.slots {
		r.slots[i] = chunk.New(slotCapacityBytes)
	}
	return r
}

// Enqueue is called by the single producer thread. writerFn receives the
// next free slot and must fill it (via Chunk.Raw()/SetLen/SetSamplingRate)
// before returning. If the ring is full, onOverflow is invoked instead —
// synchronously, exactly once — and writerFn is never called. Both
// callbacks must be real-time safe: no allocation, no blocking.
func (r *Ring) Enqueue(writerFn func(slot *chunk.Chunk), onOverflow func()) {
	head := r.head.Load()
	tail := r.tail.Load() // acquire: pairs with the consumer's release store

	if head-tail >= uint64(len(r.slots)) {
		r.overflows.Add(1)
		if onOverflow != nil {
			onOverflow()
		}
		return
	}

	slot := r.slots[head&r.mask]
	writerFn(slot)

	r.head.Store(head + 1) // release: publishes the filled slot
}

// Dequeue is called by the single consumer thread. readerFn receives the
// next filled slot (which it may read or mutate in place) before
// returning. If the ring is empty, onUnderflow is invoked instead —
// underflow is the common case (consumer caught up with the producer) and
// is silent by convention.
func (r *Ring) Dequeue(readerFn func(slot *chunk.Chunk), onUnderflow func()) {
	tail := r.tail.Load()
	head := r.head.Load() // acquire: pairs with the producer's release store

	if tail >= head {
		if onUnderflow != nil {
			onUnderflow()
		}
		return
	}

	slot := r.slots[tail&r.mask]
	readerFn(slot)

	r.tail.Store(tail + 1) // release
}

// Len reports the number of filled slots pending consumption. It is a
// snapshot — only advisory once either side is actively running.
func (r *Ring) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring's slot capacity (power of two).
func (r *Ring) Cap() int {
	return len(r.slots)
}

// Overflows returns the cumulative count of dropped-on-full chunks.
func (r *Ring) Overflows() uint64 {
	return r.overflows.Load()
}

func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}
