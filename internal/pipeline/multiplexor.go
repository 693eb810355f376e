// Package pipeline implements C10: a Multiplexor that composes several
// chunk producers into one by round-robin polling, and a Demultiplexor
// that routes chunks to the consumer matching their sampling rate.
package pipeline

import (
	"time"

	"github.com/drgolem/roomcast/internal/chunk"
)

// pauseHint is the recommended scheduler pause after a full round-robin
// lap finds nothing to yield, avoiding a busy-spin when every producer
// is momentarily dry.
const pauseHint = 100 * time.Millisecond

// Producer is the slice of capture.Source's behaviour a Multiplexor
// depends on.
type Producer interface {
	Supply(consume func(c *chunk.Chunk)) bool
	Running() bool
	Stop(graceful bool) error
}

// Multiplexor round-robins across its producers, advancing past the one
// that yielded so the next call starts from its successor — this keeps
// a consistently silent producer from starving its neighbours.
type Multiplexor struct {
	producers []Producer
	idx       int
}

func NewMultiplexor(producers ...Producer) *Multiplexor {
	return &Multiplexor{producers: producers}
}

// Supply asks each producer in turn for one chunk. It returns true and
// a zero delay as soon as one yields; if a full lap finds nothing, it
// returns false and pauseHint.
func (m *Multiplexor) Supply(consume func(c *chunk.Chunk)) (yielded bool, delay time.Duration) {
	n := len(m.producers)
	if n == 0 {
		return false, pauseHint
	}

	for i := 0; i < n; i++ {
		p := m.producers[(m.idx+i)%n]
		if p.Supply(consume) {
			m.idx = (m.idx + i + 1) % n
			return true, 0
		}
	}
	return false, pauseHint
}

// Running reports whether any composed producer is still running.
func (m *Multiplexor) Running() bool {
	for _, p := range m.producers {
		if p.Running() {
			return true
		}
	}
	return false
}

// Stop fans out to every producer and waits for each to report idle
// (each Stop call blocks until its capture loop has exited), then
// invokes onDone.
func (m *Multiplexor) Stop(graceful bool, onDone func()) error {
	var firstErr error
	for _, p := range m.producers {
		if err := p.Stop(graceful); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if onDone != nil {
		onDone()
	}
	return firstErr
}
