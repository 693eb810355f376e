package broadcaster

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/config"
	"github.com/drgolem/roomcast/internal/encoder"
	"github.com/drgolem/roomcast/internal/pipeline"
	"github.com/drgolem/roomcast/internal/streamer"
)

// fakeSource is a minimal capture.Source stand-in so lateJoin can be
// exercised without a real PortAudio device.
type fakeSource struct {
	running bool
}

func (f *fakeSource) Start(onOverflow func()) error            { return nil }
func (f *fakeSource) Stop(graceful bool) error                 { return nil }
func (f *fakeSource) Supply(consume func(c *chunk.Chunk)) bool { return false }
func (f *fakeSource) Running() bool                            { return f.running }
func (f *fakeSource) SamplingRate() int                        { return 44100 }

func newTestBroadcaster(running bool) *Broadcaster {
	return &Broadcaster{
		cfg: &config.Config{
			HTTPPort:     9000,
			SamplingRate: 44100,
		},
		source:     &fakeSource{running: running},
		formatByte: 'f',
	}
}

func TestLateJoinReturnsCurrentStreamWhenRunning(t *testing.T) {
	b := newTestBroadcaster(true)

	port, formatByte, rate, ok := b.lateJoin()
	assert.True(t, ok)
	assert.Equal(t, uint16(9000), port)
	assert.Equal(t, byte('f'), formatByte)
	assert.Equal(t, 44100, rate)
}

func TestLateJoinDeclinesWhenSourceNotRunning(t *testing.T) {
	b := newTestBroadcaster(false)

	_, _, _, ok := b.lateJoin()
	assert.False(t, ok)
}

func TestStreamerConsumerAcceptsAnyRate(t *testing.T) {
	st := streamer.New(9000, 'f')
	sc := &streamerConsumer{st: st}

	assert.Equal(t, pipeline.AnyRate, sc.SamplingRate())

	// OnChunk with no attached clients should not panic.
	c := chunk.New(16)
	c.SetSamplingRate(44100)
	sc.OnChunk(c)
}

// fakeRecordEncoder stands in for the spec.md §6 record encoder so
// streamerConsumer's tee behavior can be asserted without a real sink.
type fakeRecordEncoder struct {
	encoder.Encoder
	encoded [][]byte
}

func (f *fakeRecordEncoder) Encode(pcm []byte) error {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	f.encoded = append(f.encoded, cp)
	return nil
}

func TestStreamerConsumerTeesToRecordEncoderWhenSet(t *testing.T) {
	st := streamer.New(9000, 'f')
	rec := &fakeRecordEncoder{}
	sc := &streamerConsumer{st: st, rec: rec}

	c := chunk.New(16)
	c.SetLen(16)
	c.SetSamplingRate(44100)
	sc.OnChunk(c)

	assert.Len(t, rec.encoded, 1)
	assert.Equal(t, c.Bytes(), rec.encoded[0])
}
