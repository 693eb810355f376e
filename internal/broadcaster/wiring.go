package broadcaster

import (
	"fmt"

	"github.com/drgolem/roomcast/internal/asyncio"
	"github.com/drgolem/roomcast/internal/capture"
	"github.com/drgolem/roomcast/internal/encoder"
	"github.com/drgolem/roomcast/internal/transport"
)

func sampleFormatOf(name string) (capture.SampleFormat, error) {
	switch name {
	case "S16_LE":
		return capture.SampleFormatS16LE, nil
	case "S24_LE":
		return capture.SampleFormatS24LE, nil
	case "S32_LE":
		return capture.SampleFormatS32LE, nil
	default:
		return 0, fmt.Errorf("broadcaster: unknown sample_format %q", name)
	}
}

func bitsPerSampleOf(name string) (int, error) {
	f, err := sampleFormatOf(name)
	if err != nil {
		return 0, err
	}
	return f.BytesPerSample() * 8, nil
}

// encodingOf maps the configured output format to both the Encoder
// variant and the SlimProto format byte ('p' PCM, 'f' FLAC) strm(start)
// needs to tell the client how to decode the incoming socket.
func encodingOf(name string) (encoder.Format, byte, error) {
	switch name {
	case "wave":
		return encoder.FormatWave, 'p', nil
	case "flac":
		return encoder.FormatFlac, 'f', nil
	default:
		return 0, 0, fmt.Errorf("broadcaster: unknown encoder_format %q", name)
	}
}

// connSink adapts *transport.Connection to asyncio.Writer so an encoder
// can push bytes at it through a BufferedWriter's back-pressure pool.
// Sockets cannot seek, so Rewind is a no-op — exactly SocketWriter's
// contract, just over the Connection's serialized Write instead of a
// raw net.Conn.
type connSink struct {
	c *transport.Connection
}

func (s connSink) Write(data []byte) (int, error) {
	return s.c.Write(data)
}

func (s connSink) WriteAsync(data []byte, onDone func(err error, n int)) {
	n, err := s.c.Write(data)
	if onDone != nil {
		onDone(err, n)
	}
}

func (s connSink) Rewind(pos int64) error {
	return nil
}

func asyncioBufferedSink(c *transport.Connection) asyncio.Writer {
	return asyncio.NewBufferedWriter(connSink{c: c}, writerPoolSize, writerBufSize)
}
