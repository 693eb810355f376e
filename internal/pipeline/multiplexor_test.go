package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/roomcast/internal/chunk"
)

type fakeProducer struct {
	queue   []*chunk.Chunk
	running bool
	stopped bool
}

func (f *fakeProducer) Supply(consume func(c *chunk.Chunk)) bool {
	if len(f.queue) == 0 {
		return false
	}
	c := f.queue[0]
	f.queue = f.queue[1:]
	consume(c)
	return true
}

func (f *fakeProducer) Running() bool { return f.running }

func (f *fakeProducer) Stop(graceful bool) error {
	f.stopped = true
	f.running = false
	return nil
}

func mkChunk(tag byte) *chunk.Chunk {
	c := chunk.New(1)
	c.Raw()[0] = tag
	c.SetLen(1)
	return c
}

func TestMultiplexorRoundRobinsAndAdvancesPastYielder(t *testing.T) {
	p0 := &fakeProducer{queue: []*chunk.Chunk{mkChunk('a')}, running: true}
	p1 := &fakeProducer{queue: []*chunk.Chunk{mkChunk('b')}, running: true}
	m := NewMultiplexor(p0, p1)

	var got []byte
	yielded, delay := m.Supply(func(c *chunk.Chunk) { got = append(got, c.Bytes()[0]) })
	require.True(t, yielded)
	assert.Equal(t, time.Duration(0), delay)
	assert.Equal(t, []byte{'a'}, got)

	yielded, _ = m.Supply(func(c *chunk.Chunk) { got = append(got, c.Bytes()[0]) })
	require.True(t, yielded)
	assert.Equal(t, []byte{'a', 'b'}, got)
}

func TestMultiplexorReturnsPauseHintOnEmptyLap(t *testing.T) {
	p0 := &fakeProducer{running: true}
	m := NewMultiplexor(p0)

	yielded, delay := m.Supply(func(c *chunk.Chunk) {})
	assert.False(t, yielded)
	assert.Equal(t, pauseHint, delay)
}

func TestMultiplexorRunningReflectsComposedProducers(t *testing.T) {
	p0 := &fakeProducer{running: false}
	p1 := &fakeProducer{running: true}
	m := NewMultiplexor(p0, p1)
	assert.True(t, m.Running())

	p1.running = false
	assert.False(t, m.Running())
}

func TestMultiplexorStopFansOutAndCallsOnDone(t *testing.T) {
	p0 := &fakeProducer{running: true}
	p1 := &fakeProducer{running: true}
	m := NewMultiplexor(p0, p1)

	done := false
	require.NoError(t, m.Stop(true, func() { done = true }))
	assert.True(t, p0.stopped)
	assert.True(t, p1.stopped)
	assert.True(t, done)
}
