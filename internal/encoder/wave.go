package encoder

import (
	"bytes"
	"encoding/binary"

	"github.com/drgolem/roomcast/internal/asyncio"
	"github.com/youpy/go-wav"
)

// waveEncoder is the pass-through PCM path, framed with a standard RIFF/WAVE
// header. The exact byte length of a live stream is unknown up front, so
// the header is written with a provisional size and patched via Rewind
// once Finish is called, mirroring the size-patching contract in
// spec.md §4.3. go-wav's Writer always needs a sample count up front to
// produce that header, so it is used here purely as the header formatter;
// the trailing size patch is plain byte arithmetic since go-wav has no API
// to rewrite a header it has already emitted.
type waveEncoder struct {
	sink          asyncio.Writer
	sampleRate    int
	channels      int
	bitsPerSample int

	headerLen  int64
	dataLen    int64
	wroteHeader bool
}

func newWaveEncoder(sink asyncio.Writer, opts Options) (Encoder, error) {
	return &waveEncoder{
		sink:          sink,
		sampleRate:    opts.SampleRate,
		channels:      opts.Channels,
		bitsPerSample: opts.BitsPerSample,
	}, nil
}

func (e *waveEncoder) Format() Format       { return FormatWave }
func (e *waveEncoder) SampleRate() int      { return e.sampleRate }
func (e *waveEncoder) Channels() int        { return e.channels }
func (e *waveEncoder) BitsPerSample() int   { return e.bitsPerSample }
func (e *waveEncoder) MIME() string         { return "audio/x-wav" }
func (e *waveEncoder) Extension() string    { return ".wav" }
func (e *waveEncoder) HeaderRequired() bool { return true }

func (e *waveEncoder) Encode(pcm []byte) error {
	if !e.wroteHeader {
		if err := e.writeHeader(); err != nil {
			return err
		}
		e.wroteHeader = true
	}
	n, err := e.sink.Write(pcm)
	e.dataLen += int64(n)
	return err
}

// writeHeader emits a placeholder RIFF/WAVE header via go-wav's Writer,
// sized for zero samples; the real sizes are patched in at Finish.
func (e *waveEncoder) writeHeader() error {
	var buf bytes.Buffer
	w := wav.NewWriter(&buf, 0, uint16(e.channels), uint32(e.sampleRate), uint16(e.bitsPerSample))
	// go-wav flushes the header on the first Write call even with zero
	// bytes of payload, leaving buf holding exactly the 44-byte header.
	if _, err := w.Write(nil); err != nil {
		return err
	}
	e.headerLen = int64(buf.Len())
	_, err := e.sink.Write(buf.Bytes())
	return err
}

// Finish patches the RIFF chunk size (offset 4) and the data sub-chunk
// size (offset 40) now that the true payload length is known.
func (e *waveEncoder) Finish() error {
	if !e.wroteHeader {
		return nil
	}

	riffSize := uint32(e.headerLen-8) + uint32(e.dataLen)
	dataSize := uint32(e.dataLen)

	var patch [4]byte

	binary.LittleEndian.PutUint32(patch[:], riffSize)
	if err := e.sink.Rewind(4); err != nil {
		return err
	}
	if _, err := e.sink.Write(patch[:]); err != nil {
		return err
	}

	binary.LittleEndian.PutUint32(patch[:], dataSize)
	if err := e.sink.Rewind(40); err != nil {
		return err
	}
	if _, err := e.sink.Write(patch[:]); err != nil {
		return err
	}

	return e.sink.Rewind(e.headerLen + e.dataLen)
}
