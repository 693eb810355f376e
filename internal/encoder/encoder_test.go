package encoder

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// memSink is a seekable in-memory asyncio.Writer used to exercise the
// WAVE header size patch without touching the filesystem.
type memSink struct {
	buf []byte
	pos int64
}

func (m *memSink) Write(data []byte) (int, error) {
	end := m.pos + int64(len(data))
	if end > int64(len(m.buf)) {
		grown := make([]byte, end)
		copy(grown, m.buf)
		m.buf = grown
	}
	n := copy(m.buf[m.pos:], data)
	m.pos += int64(n)
	return n, nil
}

func (m *memSink) WriteAsync(data []byte, onDone func(err error, n int)) {
	n, err := m.Write(data)
	if onDone != nil {
		onDone(err, n)
	}
}

func (m *memSink) Rewind(pos int64) error {
	m.pos = pos
	return nil
}

func TestBuilderRejectsIncompleteOptions(t *testing.T) {
	cases := []struct {
		name string
		opts Options
	}{
		{"zero sample rate", Options{SampleRate: 0, Channels: 2, BitsPerSample: 16}},
		{"zero channels", Options{SampleRate: 44100, Channels: 0, BitsPerSample: 16}},
		{"zero bits per sample", Options{SampleRate: 44100, Channels: 2, BitsPerSample: 0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuilder().
				WithFormat(FormatWave).
				WithSink(&memSink{}).
				WithOptions(tc.opts).
				Build()
			assert.ErrorIs(t, err, roomcasterr.ErrEncoderOptionMissing)
		})
	}
}

func TestBuilderRejectsMissingSink(t *testing.T) {
	_, err := NewBuilder().
		WithFormat(FormatWave).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 16}).
		Build()
	assert.ErrorIs(t, err, roomcasterr.ErrEncoderOptionMissing)
}

func TestWaveEncoderPatchesHeaderSizesOnFinish(t *testing.T) {
	sink := &memSink{}
	enc, err := NewBuilder().
		WithFormat(FormatWave).
		WithSink(sink).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 16}).
		Build()
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x11, 0x22}, 100)
	require.NoError(t, enc.Encode(payload))
	require.NoError(t, enc.Finish())

	require.True(t, len(sink.buf) > 44)
	assert.Equal(t, "RIFF", string(sink.buf[0:4]))
	assert.Equal(t, "WAVE", string(sink.buf[8:12]))

	dataLen := uint32(sink.buf[40]) | uint32(sink.buf[41])<<8 | uint32(sink.buf[42])<<16 | uint32(sink.buf[43])<<24
	assert.Equal(t, uint32(len(payload)), dataLen)

	riffLen := uint32(sink.buf[4]) | uint32(sink.buf[5])<<8 | uint32(sink.buf[6])<<16 | uint32(sink.buf[7])<<24
	assert.Equal(t, uint32(len(sink.buf)-8), riffLen)
}

func TestFormatString(t *testing.T) {
	assert.Equal(t, "wave", FormatWave.String())
	assert.Equal(t, "flac", FormatFlac.String())
}

func TestWaveEncoderMetadataGetters(t *testing.T) {
	enc, err := NewBuilder().
		WithFormat(FormatWave).
		WithSink(&memSink{}).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 16}).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "audio/x-wav", enc.MIME())
	assert.Equal(t, ".wav", enc.Extension())
	assert.True(t, enc.HeaderRequired())
}

func TestFlacEncoderMetadataGetters(t *testing.T) {
	enc, err := NewBuilder().
		WithFormat(FormatFlac).
		WithSink(&memSink{}).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 16}).
		Build()
	require.NoError(t, err)
	defer enc.Finish()

	assert.Equal(t, "audio/flac", enc.MIME())
	assert.Equal(t, ".flac", enc.Extension())
	assert.False(t, enc.HeaderRequired())
}

// spec.md §4.3: a FLAC encoder fed a 32-bit physical/32-bit meaningful
// value must downscale to FLAC's 24-bit ceiling by discarding the low 8
// bits, rather than feeding libFLAC a width it does not support.
func TestFlacEncoderDownscalesValueWidthAbove24Bits(t *testing.T) {
	enc, err := NewBuilder().
		WithFormat(FormatFlac).
		WithSink(&memSink{}).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 32, BitsPerValue: 32}).
		Build()
	require.NoError(t, err)
	defer enc.Finish()

	fe, ok := enc.(*flacEncoder)
	require.True(t, ok)
	assert.True(t, fe.downScale)
	assert.Equal(t, uint(8), fe.downShift)
	assert.Equal(t, 32, fe.bitsPerValue)

	payload := make([]byte, 2*4*4) // 2 channels * 4 bytes per sample * 4 frames
	assert.NoError(t, enc.Encode(payload))
}

// Below the 24-bit ceiling, no downscale is applied and the meaningful
// width defaults to the physical container width.
func TestFlacEncoderSkipsDownscaleAtOrBelow24Bits(t *testing.T) {
	enc, err := NewBuilder().
		WithFormat(FormatFlac).
		WithSink(&memSink{}).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 24}).
		Build()
	require.NoError(t, err)
	defer enc.Finish()

	fe, ok := enc.(*flacEncoder)
	require.True(t, ok)
	assert.False(t, fe.downScale)
	assert.Equal(t, 24, fe.bitsPerValue)
}

func TestOptionsValidateRejectsBitsPerValueAboveBitsPerSample(t *testing.T) {
	_, err := NewBuilder().
		WithFormat(FormatFlac).
		WithSink(&memSink{}).
		WithOptions(Options{SampleRate: 44100, Channels: 2, BitsPerSample: 16, BitsPerValue: 24}).
		Build()
	assert.Error(t, err)
}
