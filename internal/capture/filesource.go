package capture

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/ring"
)

// FileSource decodes a WAV/FLAC/MP3 file and feeds it through the same
// Source contract a live device would, so the scheduler, streamer and
// protocol layers can be exercised end-to-end without audio hardware —
// the "File outputs (offline testing)" collaborator named in spec.md §6.
//
// Files carry no sacrificial marker channel, so FileSource skips marker
// filtering entirely: every decoded frame is forwarded. Its capture loop
// runs on an ordinary goroutine rather than a dedicated OS thread, since
// there is no real-time device deadline to honour; the RT-safety
// invariants in spec.md §4.2 only bind the live PortAudio path.
type FileSource struct {
	decoder        FileDecoder
	samplesPerRead int
	ring           *ring.Ring
	rate, channels, bps int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewFileSource opens fileName with the decoder matching its extension
// and prepares a ring sized for ringCapacity chunks of samplesPerRead
// frames each.
func NewFileSource(fileName string, samplesPerRead int, ringCapacity int) (*FileSource, error) {
	var dec FileDecoder
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".wav":
		dec = newWavFileDecoder()
	case ".flac", ".fla":
		dec = newFlacFileDecoder()
	case ".mp3":
		dec = newMp3FileDecoder()
	default:
		return nil, fmt.Errorf("capture: unsupported file source format %q", fileName)
	}

	if err := dec.Open(fileName); err != nil {
		return nil, err
	}
	rate, channels, bps := dec.GetFormat()
	bytesPerFrame := channels * (bps / 8)

	return &FileSource{
		decoder:        dec,
		samplesPerRead: samplesPerRead,
		ring:           ring.New(ringCapacity, samplesPerRead*bytesPerFrame),
		rate:           rate,
		channels:       channels,
		bps:            bps,
	}, nil
}

func (f *FileSource) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FileSource) SamplingRate() int { return f.rate }

func (f *FileSource) Supply(consume func(c *chunk.Chunk)) bool {
	delivered := false
	f.ring.Dequeue(func(slot *chunk.Chunk) {
		consume(slot)
		delivered = true
	}, nil)
	return delivered
}

// Start decodes the file in a loop, publishing chunks until EOF or Stop.
// Unlike the live Source, there is no device deadline, so Start paces
// itself to roughly real time (frames/rate) to avoid flooding the ring
// faster than a real client could ever drain it.
func (f *FileSource) Start(onOverflow func()) error {
	f.mu.Lock()
	f.running = true
	f.stopCh = make(chan struct{})
	f.doneCh = make(chan struct{})
	f.mu.Unlock()
	defer close(f.doneCh)

	bytesPerFrame := f.channels * (f.bps / 8)
	buf := make([]byte, f.samplesPerRead*bytesPerFrame)
	interval := time.Duration(float64(f.samplesPerRead)/float64(f.rate)*float64(time.Second))

	slog.Info("file source started", "rate", f.rate, "channels", f.channels, "bps", f.bps)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-f.stopCh:
			return nil
		case <-ticker.C:
		}

		n, err := f.decoder.DecodeSamples(f.samplesPerRead, buf)
		if err != nil || n == 0 {
			slog.Info("file source reached end of stream", "error", err)
			f.publishEndOfStream()
			f.mu.Lock()
			f.running = false
			f.mu.Unlock()
			return nil
		}

		bytesRead := n * bytesPerFrame
		f.ring.Enqueue(func(slot *chunk.Chunk) {
			copy(slot.Raw(), buf[:bytesRead])
			slot.SetLen(bytesRead)
			slot.SetSamplingRate(f.rate)
		}, onOverflow)
	}
}

func (f *FileSource) publishEndOfStream() {
	f.ring.Enqueue(func(slot *chunk.Chunk) {
		slot.SetLen(0)
		slot.SetSamplingRate(chunk.EndOfStream)
	}, func() {})
}

func (f *FileSource) Stop(graceful bool) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	close(f.stopCh)
	<-f.doneCh
	return f.decoder.Close()
}
