package capture

import (
	"sync"

	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/ring"
)

// Source is the capture contract from spec.md §4.2. Start runs the
// capture loop on its own OS thread and returns only on Stop or an
// unrecoverable device error. Stop requests the loop to exit and blocks
// until it has. Supply is the non-blocking dequeue the event loop uses to
// pull one chunk per call.
type Source interface {
	Start(onOverflow func()) error
	Stop(graceful bool) error
	Supply(consume func(c *chunk.Chunk)) bool
	Running() bool
	SamplingRate() int
}

// baseSource holds the state shared by every Source implementation: the
// ring, the transition lock guarding Running, and the streaming bit. It is
// embedded, not exported, so each concrete Source only needs to implement
// its own capture loop.
type baseSource struct {
	params Params
	ring   *ring.Ring

	mu      sync.Mutex // guards running only; never held across a device read
	running bool

	streaming bool
}

func newBaseSource(p Params) (*baseSource, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &baseSource{
		params: p,
		ring:   ring.New(p.RingCapacity, p.FramesPerChunk*p.logicalFrameBytes()),
	}, nil
}

func (b *baseSource) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

func (b *baseSource) setRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

func (b *baseSource) SamplingRate() int {
	return b.params.SamplingRate
}

// Supply is shared by all Source implementations: a non-blocking dequeue
// from the ring into consume. Returns true if a chunk was delivered.
func (b *baseSource) Supply(consume func(c *chunk.Chunk)) bool {
	delivered := false
	b.ring.Dequeue(func(slot *chunk.Chunk) {
		consume(slot)
		delivered = true
	}, nil)
	return delivered
}

// publish enqueues one physical read's worth of frames into the ring,
// applying the marker filter. It is called from the capture loop (the RT
// thread) and must remain allocation-free itself — the marker filtering
// writes directly into the ring slot's pre-allocated buffer.
func (b *baseSource) publish(physicalBuf []byte, numFrames int, onOverflow func()) {
	b.ring.Enqueue(func(slot *chunk.Chunk) {
		dst := slot.Raw()
		written, streaming := b.params.filterFrames(physicalBuf, numFrames, b.streaming, dst)
		b.streaming = streaming
		slot.SetLen(written * b.params.logicalFrameBytes())
		slot.SetSamplingRate(b.params.SamplingRate)
	}, onOverflow)
}
