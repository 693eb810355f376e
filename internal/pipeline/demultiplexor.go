package pipeline

import (
	"log/slog"

	"github.com/drgolem/roomcast/internal/chunk"
)

// AnyRate marks a Consumer that accepts chunks at whatever rate
// arrives — used by consumers (like the fan-out Streamer) that do their
// own per-client rate bookkeeping downstream rather than being bound to
// a single rate themselves.
const AnyRate = -1

// Consumer is something a Demultiplexor can route chunks to.
type Consumer interface {
	SamplingRate() int
	OnChunk(c *chunk.Chunk)
}

// Demultiplexor dispatches chunks to the Consumer matching the chunk's
// sampling rate, caching the current match so the common case (a run of
// same-rate chunks) is a single comparison.
type Demultiplexor struct {
	consumers []Consumer
	current   Consumer
}

func NewDemultiplexor(consumers ...Consumer) *Demultiplexor {
	return &Demultiplexor{consumers: consumers}
}

// Dispatch routes c. A rate of chunk.EndOfStream (0) is end-of-stream
// and is silently absorbed rather than routed. If no consumer matches a
// non-zero rate, the chunk is dropped with a warning.
func (d *Demultiplexor) Dispatch(c *chunk.Chunk) {
	if c.IsEndOfStream() {
		return
	}

	if d.current != nil && matches(d.current, c.SamplingRate()) {
		d.current.OnChunk(c)
		return
	}

	for _, cons := range d.consumers {
		if matches(cons, c.SamplingRate()) {
			d.current = cons
			cons.OnChunk(c)
			return
		}
	}

	slog.Warn("pipeline: no consumer for sampling rate", "rate", c.SamplingRate())
}

func matches(c Consumer, rate int) bool {
	r := c.SamplingRate()
	return r == AnyRate || r == rate
}
