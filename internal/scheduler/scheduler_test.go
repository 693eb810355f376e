package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/roomcast/internal/chunk"
)

type countingProducer struct {
	mu        sync.Mutex
	remaining int
	running   bool
}

func (p *countingProducer) Supply(consume func(c *chunk.Chunk)) (bool, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remaining == 0 {
		return false, 0
	}
	p.remaining--
	consume(chunk.New(1))
	return true, 0
}

func (p *countingProducer) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

type countingConsumer struct {
	mu    sync.Mutex
	count int
}

func (c *countingConsumer) Dispatch(ch *chunk.Chunk) {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countingConsumer) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// P7: a single quantum processes at most M chunks.
func TestRunQuantumProcessesAtMostM(t *testing.T) {
	p := &countingProducer{remaining: 100, running: true}
	c := &countingConsumer{}
	s := New(p, c, nil).WithQuantum(5)

	delay, err := s.runQuantum()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), delay)
	assert.Equal(t, 5, c.total())
}

func TestRunQuantumStopsEarlyWhenProducerIsDry(t *testing.T) {
	p := &countingProducer{remaining: 2, running: true}
	c := &countingConsumer{}
	s := New(p, c, nil).WithQuantum(5)

	delay, err := s.runQuantum()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), delay)
	assert.Equal(t, 2, c.total())
}

func TestSchedulerConsumesEveryChunkBeforeStop(t *testing.T) {
	p := &countingProducer{remaining: 3, running: true}
	c := &countingConsumer{}
	s := New(p, c, nil)

	s.Start()

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.remaining == 0 {
			p.running = false
		}
		return c.total() == 3
	}, time.Second, time.Millisecond)

	s.Stop()
}

func TestSchedulerOnErrorFiresOnPanicAndStops(t *testing.T) {
	p := &panicProducer{}
	c := &countingConsumer{}

	errCh := make(chan error, 1)
	s := New(p, c, func(err error) { errCh <- err })
	s.Start()

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("onError never fired")
	}
	s.Stop()
}

type panicProducer struct{}

func (p *panicProducer) Supply(consume func(c *chunk.Chunk)) (bool, time.Duration) {
	panic(errors.New("device unrecoverable"))
}
func (p *panicProducer) Running() bool { return true }
