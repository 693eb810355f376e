package encoder

import (
	"fmt"

	goflac "github.com/drgolem/go-flac/flac"

	"github.com/drgolem/roomcast/internal/asyncio"
)

// flacEncoder drives go-flac's cgo stream encoder: PCM in via
// ProcessInterleaved, compressed bytes out via TakeBytes after every
// call, pushed to the sink as they accumulate. 24-bit samples are
// right-justified into int32 and sign-masked per ProcessInterleaved's
// contract.
//
// FLAC encodes at most 24 meaningful bits per value. When the input's
// bitsPerValue exceeds that — a 32-bit physical container used to carry
// a 32-bit value, say — the low (bitsPerValue-24) bits are discarded by
// right-shifting each sample before handing it to libFLAC, which is
// itself configured for 24 bits per sample. This is the lossy,
// documented downscale spec.md §4.3 requires, grounded on
// original_source's slim::flac::Encoder, which downscales the same way
// when bitsPerValue > 24.
type flacEncoder struct {
	enc           *goflac.FlacEncoder
	sink          asyncio.Writer
	sampleRate    int
	channels      int
	bitsPerSample int // physical container width, used to unpack raw PCM bytes
	bitsPerValue  int // meaningful width as configured
	downScale     bool
	downShift     uint

	samples []int32 // scratch buffer, reused across Encode calls
}

func newFlacEncoder(sink asyncio.Writer, opts Options) (Encoder, error) {
	bitsPerValue := opts.bitsPerValue()

	encodeWidth := bitsPerValue
	downScale := false
	var downShift uint
	if bitsPerValue > 24 {
		downScale = true
		downShift = uint(bitsPerValue - 24)
		encodeWidth = 24
	}

	enc, err := goflac.NewFlacEncoder(opts.SampleRate, opts.Channels, encodeWidth)
	if err != nil {
		return nil, fmt.Errorf("encoder: flac: %w", err)
	}

	level := opts.CompressionLevel
	if level == 0 {
		level = 5
	}
	if err := enc.SetCompressionLevel(level); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encoder: flac: %w", err)
	}

	if err := enc.InitStream(); err != nil {
		enc.Close()
		return nil, fmt.Errorf("encoder: flac: %w", err)
	}

	return &flacEncoder{
		enc:           enc,
		sink:          sink,
		sampleRate:    opts.SampleRate,
		channels:      opts.Channels,
		bitsPerSample: opts.BitsPerSample,
		bitsPerValue:  bitsPerValue,
		downScale:     downScale,
		downShift:     downShift,
	}, nil
}

func (e *flacEncoder) Format() Format       { return FormatFlac }
func (e *flacEncoder) SampleRate() int      { return e.sampleRate }
func (e *flacEncoder) Channels() int        { return e.channels }
func (e *flacEncoder) BitsPerSample() int   { return e.bitsPerSample }
func (e *flacEncoder) MIME() string         { return "audio/flac" }
func (e *flacEncoder) Extension() string    { return ".flac" }
func (e *flacEncoder) HeaderRequired() bool { return false }

// Encode unpacks little-endian PCM bytes into right-justified int32
// samples, hands them to libFLAC, then drains whatever compressed
// bytes the write callback produced this round to the sink.
func (e *flacEncoder) Encode(pcm []byte) error {
	bytesPerSample := e.bitsPerSample / 8
	if bytesPerSample == 0 || len(pcm)%bytesPerSample != 0 {
		return fmt.Errorf("encoder: flac: pcm length %d not a multiple of sample width %d", len(pcm), bytesPerSample)
	}

	numValues := len(pcm) / bytesPerSample
	numSamples := numValues / e.channels
	if numSamples == 0 {
		return nil
	}

	if cap(e.samples) < numValues {
		e.samples = make([]int32, numValues)
	}
	e.samples = e.samples[:numValues]

	for i := 0; i < numValues; i++ {
		off := i * bytesPerSample
		var v int32
		switch e.bitsPerSample {
		case 16:
			v = int32(int16(uint16(pcm[off]) | uint16(pcm[off+1])<<8))
		case 24:
			raw := uint32(pcm[off]) | uint32(pcm[off+1])<<8 | uint32(pcm[off+2])<<16
			if raw&0x800000 != 0 {
				raw |= 0xFF000000
			}
			v = int32(raw)
		case 32:
			v = int32(uint32(pcm[off]) | uint32(pcm[off+1])<<8 | uint32(pcm[off+2])<<16 | uint32(pcm[off+3])<<24)
		default:
			return fmt.Errorf("encoder: flac: unsupported bits per sample %d", e.bitsPerSample)
		}
		if e.downScale {
			v >>= e.downShift
		}
		e.samples[i] = v
	}

	if err := e.enc.ProcessInterleaved(e.samples, numSamples); err != nil {
		return fmt.Errorf("encoder: flac: %w", err)
	}

	return e.drain()
}

func (e *flacEncoder) drain() error {
	if out := e.enc.TakeBytes(); len(out) > 0 {
		if _, err := e.sink.Write(out); err != nil {
			return err
		}
	}
	return nil
}

func (e *flacEncoder) Finish() error {
	defer e.enc.Close()

	if err := e.enc.Finish(); err != nil {
		return fmt.Errorf("encoder: flac: %w", err)
	}
	return e.drain()
}
