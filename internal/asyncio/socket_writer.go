package asyncio

import (
	"net"
)

// SocketWriter is a non-blocking-best-effort Writer over a TCP
// connection. Rewind is a no-op: sockets cannot seek.
type SocketWriter struct {
	conn net.Conn
}

// NewSocketWriter wraps an already-open connection.
func NewSocketWriter(conn net.Conn) *SocketWriter {
	return &SocketWriter{conn: conn}
}

func (w *SocketWriter) Write(data []byte) (int, error) {
	return w.conn.Write(data)
}

// WriteAsync on a socket writer just performs the write synchronously and
// invokes onDone immediately — Go's net.Conn.Write already does not block
// the caller beyond kernel buffering, so there is no separate completion
// to wait for the way an OS-level async-reactor write would have.
func (w *SocketWriter) WriteAsync(data []byte, onDone func(err error, n int)) {
	n, err := w.conn.Write(data)
	if onDone != nil {
		onDone(err, n)
	}
}

func (w *SocketWriter) Rewind(pos int64) error {
	return nil
}
