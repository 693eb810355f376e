package asyncio

import (
	"sync"

	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// BufferedWriter wraps a downstream Writer with a pool of K reusable
// output buffers so an encoder never blocks waiting for a slow socket:
// when all K buffers are outstanding, Write/WriteAsync return
// ErrNoBufferSpace instead of blocking, and the caller (the encoder) is
// expected to treat that as back-pressure and retry on the next
// scheduler quantum, per spec.md §4.3/§7.
type BufferedWriter struct {
	downstream Writer

	mu        sync.Mutex
	buffers   [][]byte
	inflight  []bool
}

// NewBufferedWriter creates a pool of k buffers, each bufSize bytes.
func NewBufferedWriter(downstream Writer, k, bufSize int) *BufferedWriter {
	bw := &BufferedWriter{
		downstream: downstream,
		buffers:    make([][]byte, k),
		inflight:   make([]bool, k),
	}
	for i := range bw.buffers {
		bw.buffers[i] = make([]byte, bufSize)
	}
	return bw
}

// acquire finds a free buffer, copies data into it (trimmed to its
// capacity) and marks it outstanding. Returns -1 if none is free.
func (bw *BufferedWriter) acquire(data []byte) int {
	bw.mu.Lock()
	defer bw.mu.Unlock()

	for i, busy := range bw.inflight {
		if !busy {
			n := copy(bw.buffers[i], data)
			bw.inflight[i] = true
			bw.buffers[i] = bw.buffers[i][:n]
			return i
		}
	}
	return -1
}

func (bw *BufferedWriter) release(i int) {
	bw.mu.Lock()
	bw.buffers[i] = bw.buffers[i][:cap(bw.buffers[i])]
	bw.inflight[i] = false
	bw.mu.Unlock()
}

// Write is the back-pressure-aware best-effort path: it copies data into
// a free pool buffer, writes that buffer to the downstream writer
// synchronously and releases it before returning, or returns
// ErrNoBufferSpace if the pool is exhausted.
func (bw *BufferedWriter) Write(data []byte) (int, error) {
	i := bw.acquire(data)
	if i < 0 {
		return 0, roomcasterr.ErrNoBufferSpace
	}
	defer bw.release(i)
	return bw.downstream.Write(bw.buffers[i])
}

// WriteAsync acquires a buffer, dispatches the downstream async write,
// and releases the buffer back to the pool when it completes. If no
// buffer is free, onDone is invoked synchronously with ErrNoBufferSpace.
func (bw *BufferedWriter) WriteAsync(data []byte, onDone func(err error, n int)) {
	i := bw.acquire(data)
	if i < 0 {
		if onDone != nil {
			onDone(roomcasterr.ErrNoBufferSpace, 0)
		}
		return
	}

	bw.downstream.WriteAsync(bw.buffers[i], func(err error, n int) {
		bw.release(i)
		if onDone != nil {
			onDone(err, n)
		}
	})
}

func (bw *BufferedWriter) Rewind(pos int64) error {
	return bw.downstream.Rewind(pos)
}

// Outstanding reports how many of the pool's buffers are currently
// in flight, for diagnostics.
func (bw *BufferedWriter) Outstanding() int {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	n := 0
	for _, busy := range bw.inflight {
		if busy {
			n++
		}
	}
	return n
}
