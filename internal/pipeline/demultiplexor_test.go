package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/drgolem/roomcast/internal/chunk"
)

type fakeConsumer struct {
	rate     int
	received []*chunk.Chunk
}

func (f *fakeConsumer) SamplingRate() int { return f.rate }
func (f *fakeConsumer) OnChunk(c *chunk.Chunk) {
	f.received = append(f.received, c)
}

func rateChunk(rate int) *chunk.Chunk {
	c := chunk.New(4)
	c.SetLen(4)
	c.SetSamplingRate(rate)
	return c
}

func TestDemultiplexorRoutesToMatchingRate(t *testing.T) {
	c44 := &fakeConsumer{rate: 44100}
	c48 := &fakeConsumer{rate: 48000}
	d := NewDemultiplexor(c44, c48)

	d.Dispatch(rateChunk(48000))
	assert.Len(t, c48.received, 1)
	assert.Len(t, c44.received, 0)
}

func TestDemultiplexorCachesCurrentConsumer(t *testing.T) {
	c44 := &fakeConsumer{rate: 44100}
	d := NewDemultiplexor(c44)

	d.Dispatch(rateChunk(44100))
	d.Dispatch(rateChunk(44100))
	assert.Len(t, c44.received, 2)
}

func TestDemultiplexorDropsUnmatchedNonZeroRate(t *testing.T) {
	c44 := &fakeConsumer{rate: 44100}
	d := NewDemultiplexor(c44)

	d.Dispatch(rateChunk(96000))
	assert.Len(t, c44.received, 0)
}

func TestDemultiplexorSilentlyAbsorbsEndOfStream(t *testing.T) {
	c44 := &fakeConsumer{rate: 44100}
	d := NewDemultiplexor(c44)

	d.Dispatch(rateChunk(chunk.EndOfStream))
	assert.Len(t, c44.received, 0)
}

func TestDemultiplexorAnyRateConsumerAlwaysMatches(t *testing.T) {
	any := &fakeConsumer{rate: AnyRate}
	d := NewDemultiplexor(any)

	d.Dispatch(rateChunk(44100))
	d.Dispatch(rateChunk(48000))
	assert.Len(t, any.received, 2)
}
