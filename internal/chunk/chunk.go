// Package chunk defines the unit of captured audio passed across the
// streaming pipeline: a fixed-capacity, reused byte buffer tagged with a
// sampling rate.
package chunk

// EndOfStream is the reserved sampling-rate value meaning "no more data
// will follow on this producer".
const EndOfStream = 0

// Chunk is one capture period's worth of interleaved PCM samples plus a
// sampling-rate tag. Its buffer is allocated once, at ring-initialisation
// time, and reused thereafter: only Len is mutated per cycle, never the
// underlying array's capacity. This is what keeps the capture hot path
// free of heap traffic.
type Chunk struct {
	buf  []byte
	len  int
	rate int
}

// New allocates a Chunk with a fixed capacity. Capacity never changes for
// the lifetime of the Chunk; only Len does.
func New(capacity int) *Chunk {
	return &Chunk{buf: make([]byte, capacity)}
}

// Bytes returns the mutable byte view over the filled portion of the
// buffer (length Len, capacity cap(buf)). Callers filling the chunk should
// write into Bytes()[:n] and then call SetLen(n).
func (c *Chunk) Bytes() []byte {
	return c.buf[:c.len]
}

// Cap returns the chunk's fixed backing capacity.
func (c *Chunk) Cap() int {
	return cap(c.buf)
}

// Len returns the number of currently valid bytes.
func (c *Chunk) Len() int {
	return c.len
}

// SetLen trims or extends the valid region. It panics if n exceeds Cap,
// since that would indicate a producer writing past its pre-allocated
// slot.
func (c *Chunk) SetLen(n int) {
	if n < 0 || n > cap(c.buf) {
		panic("chunk: SetLen out of range")
	}
	c.len = n
}

// Raw exposes the full backing array (capacity, not length) for producers
// that need to write directly into the slot before calling SetLen.
func (c *Chunk) Raw() []byte {
	return c.buf
}

// SamplingRate returns the chunk's sampling-rate tag in Hz. Zero means
// end-of-stream.
func (c *Chunk) SamplingRate() int {
	return c.rate
}

// SetSamplingRate tags the chunk's sampling rate.
func (c *Chunk) SetSamplingRate(rate int) {
	c.rate = rate
}

// IsEndOfStream reports whether this chunk's rate marks end-of-stream.
func (c *Chunk) IsEndOfStream() bool {
	return c.rate == EndOfStream
}

// Reset clears length and rate without touching the backing array,
// preparing the slot for reuse by the next producer cycle.
func (c *Chunk) Reset() {
	c.len = 0
	c.rate = 0
}
