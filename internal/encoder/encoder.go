// Package encoder implements the C4 encoder abstraction from spec.md: a
// closed sum type over the formats a room can receive (WAVE/PCM, FLAC),
// each driving an asyncio.Writer, assembled via a chainable Builder.
package encoder

import (
	"fmt"

	"github.com/drgolem/roomcast/internal/asyncio"
	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// Format names the closed set of encoders this broadcaster supports.
// There is deliberately no "custom" escape hatch — spec.md treats the
// encoder inventory as fixed, not pluggable.
type Format int

const (
	FormatWave Format = iota
	FormatFlac
)

func (f Format) String() string {
	switch f {
	case FormatWave:
		return "wave"
	case FormatFlac:
		return "flac"
	default:
		return "unknown"
	}
}

// Encoder consumes interleaved PCM frames and pushes encoded bytes to an
// asyncio.Writer. Encode may be called repeatedly as chunks arrive;
// Finish flushes any trailer (FLAC's final frame, WAVE's header patch)
// and must be called exactly once, after which the Encoder is spent.
//
// The metadata getters (MIME, Extension, HeaderRequired) let callers
// couple the HTTP reply and any offline file output to the encoder's own
// idea of its format, rather than recomputing a format->MIME mapping out
// of band (spec.md §4.3/§4.6).
type Encoder interface {
	Format() Format
	SampleRate() int
	Channels() int
	BitsPerSample() int

	// MIME is the Content-Type this encoder's output should be served
	// under.
	MIME() string

	// Extension is the file extension (including the leading dot) an
	// offline file output for this format should use.
	Extension() string

	// HeaderRequired reports whether this format needs a header written
	// once at the start of the stream (WAVE) or is self-describing
	// (FLAC).
	HeaderRequired() bool

	// Encode consumes one chunk of interleaved PCM samples and writes
	// the resulting encoded bytes to the configured sink.
	Encode(pcm []byte) error

	// Finish flushes trailing state. Safe to call only once.
	Finish() error
}

// Options configures a new Encoder. SampleRate, Channels and
// BitsPerSample are required; Builder rejects an incomplete
// configuration with ErrEncoderOptionMissing rather than defaulting
// silently, since a wrong sample rate or channel count corrupts the
// stream in a way that is hard to detect downstream.
//
// BitsPerSample is the physical container width of each sample (16, 24
// or 32). BitsPerValue is the meaningful width within that container —
// distinct per spec.md §3/§4.3, since a 32-bit physical sample may carry
// fewer meaningful bits. It defaults to BitsPerSample when left zero.
type Options struct {
	SampleRate       int
	Channels         int
	BitsPerSample    int
	BitsPerValue     int
	CompressionLevel int // FLAC only; ignored for WAVE
}

func (o Options) validate() error {
	if o.SampleRate <= 0 || o.Channels <= 0 || o.BitsPerSample <= 0 {
		return fmt.Errorf("encoder: %w: sample rate, channels and bits per sample must all be set", roomcasterr.ErrEncoderOptionMissing)
	}
	if o.BitsPerValue > 0 && o.BitsPerValue > o.BitsPerSample {
		return fmt.Errorf("encoder: bits per value (%d) cannot exceed bits per sample (%d)", o.BitsPerValue, o.BitsPerSample)
	}
	return nil
}

// bitsPerValue returns the configured meaningful width, defaulting to
// the physical container width when unset.
func (o Options) bitsPerValue() int {
	if o.BitsPerValue > 0 {
		return o.BitsPerValue
	}
	return o.BitsPerSample
}

// Builder assembles an Encoder for a chosen Format and sink, in the
// teacher's chained-setter style (see pkg/audioplayer's player options).
type Builder struct {
	format Format
	sink   asyncio.Writer
	opts   Options
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) WithFormat(f Format) *Builder {
	b.format = f
	return b
}

func (b *Builder) WithSink(sink asyncio.Writer) *Builder {
	b.sink = sink
	return b
}

func (b *Builder) WithOptions(opts Options) *Builder {
	b.opts = opts
	return b
}

// Build validates the accumulated configuration and constructs the
// concrete Encoder for the chosen Format.
func (b *Builder) Build() (Encoder, error) {
	if b.sink == nil {
		return nil, fmt.Errorf("encoder: %w: sink not set", roomcasterr.ErrEncoderOptionMissing)
	}
	if err := b.opts.validate(); err != nil {
		return nil, err
	}

	switch b.format {
	case FormatWave:
		return newWaveEncoder(b.sink, b.opts)
	case FormatFlac:
		return newFlacEncoder(b.sink, b.opts)
	default:
		return nil, fmt.Errorf("encoder: unknown format %v", b.format)
	}
}
