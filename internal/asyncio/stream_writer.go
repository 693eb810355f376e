package asyncio

import "os"

// StreamWriter is a Writer over a file-like sink, used for the offline
// WAVE/FLAC file outputs named in spec.md §6. Unlike SocketWriter, Rewind
// is meaningful here: it lets an encoder patch a size field after the
// fact (e.g. WAVE's RIFF/data chunk sizes).
type StreamWriter struct {
	file *os.File
}

// NewStreamWriter wraps an already-open file.
func NewStreamWriter(file *os.File) *StreamWriter {
	return &StreamWriter{file: file}
}

func (w *StreamWriter) Write(data []byte) (int, error) {
	return w.file.Write(data)
}

func (w *StreamWriter) WriteAsync(data []byte, onDone func(err error, n int)) {
	n, err := w.file.Write(data)
	if onDone != nil {
		onDone(err, n)
	}
}

func (w *StreamWriter) Rewind(pos int64) error {
	_, err := w.file.Seek(pos, 0)
	return err
}
