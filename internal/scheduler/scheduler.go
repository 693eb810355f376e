// Package scheduler implements C11: a cooperative, single-goroutine
// driver that pulls chunks from a Producer and hands them to a Consumer
// in bounded work quanta, the idiomatic equivalent of the spec's
// reactor-posted task rescheduling over time.Timer.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drgolem/roomcast/internal/chunk"
)

// DefaultQuantum is M from spec.md §4.10: at most this many chunks are
// processed per scheduling turn before yielding control.
const DefaultQuantum = 5

// Producer is the pull side: Supply attempts to yield one chunk via
// consume; it reports whether it yielded and, when the caller should
// pause before asking again, a recommended delay (e.g. the
// Multiplexor's empty-lap pause hint).
type Producer interface {
	Supply(consume func(c *chunk.Chunk)) (yielded bool, delay time.Duration)
	Running() bool
}

// Consumer is the push side: Dispatch hands one chunk onward.
type Consumer interface {
	Dispatch(c *chunk.Chunk)
}

// runner is implemented optionally by a Consumer that has its own
// independent termination condition; if absent, the Consumer is treated
// as always running, so the loop then keeps going until Stop (or a
// quantum error) ends it.
type runner interface {
	Running() bool
}

// Scheduler drives Producer→Consumer on a single goroutine.
type Scheduler struct {
	producer Producer
	consumer Consumer
	quantum  int
	onError  func(err error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Scheduler with the default quantum (M=5); override via
// WithQuantum before Start if a different bound is needed.
func New(producer Producer, consumer Consumer, onError func(err error)) *Scheduler {
	return &Scheduler{
		producer: producer,
		consumer: consumer,
		quantum:  DefaultQuantum,
		onError:  onError,
	}
}

func (s *Scheduler) WithQuantum(m int) *Scheduler {
	s.quantum = m
	return s
}

// Start launches the cooperative loop. Safe to call once; a second call
// while already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop()
}

// Stop cancels any pending timer and blocks until the loop has exited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	stopCh := s.stopCh
	doneCh := s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
}

func (s *Scheduler) loop() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		close(s.doneCh)
	}()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if !s.producer.Running() && !s.consumerRunning() {
			return
		}

		delay, err := s.runQuantum()
		if err != nil {
			slog.Error("scheduler: quantum failed, stopping", "error", err)
			if s.onError != nil {
				s.onError(err)
			}
			return
		}

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-s.stopCh:
				return
			}
		}
	}
}

func (s *Scheduler) consumerRunning() bool {
	if r, ok := s.consumer.(runner); ok {
		return r.Running()
	}
	return true
}

// runQuantum processes up to s.quantum chunks, recovering from a panic
// in the producer or consumer and reporting it as a fatal quantum error
// — the scheduler never retries a failed quantum, since the underlying
// cause is almost always an irrecoverable device or encoder state.
func (s *Scheduler) runQuantum() (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: quantum panic: %v", r)
		}
	}()

	for i := 0; i < s.quantum; i++ {
		yielded, d := s.producer.Supply(func(c *chunk.Chunk) {
			s.consumer.Dispatch(c)
		})
		if !yielded {
			return d, nil
		}
	}
	return 0, nil
}
