// Package transport implements the C6 TCP accept loop and per-connection
// read/write lifecycle: a thin socket wrapper with user-supplied
// callbacks, grounded on the goroutine-per-connection accept/listen
// pattern in doismellburning-samoyed's kissnet.go, adapted from its
// cgo/channel-array bookkeeping to a plain Go connection map guarded by
// a mutex.
package transport

import (
	"bufio"
	"log/slog"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

const readBufSize = 1024

// Callbacks is the set of lifecycle hooks a Connection drives. Exactly
// one goroutine — this connection's own read loop — invokes all of
// them, in order, so a caller never needs to guard against concurrent
// delivery from the same Connection.
type Callbacks struct {
	OnStart func(c *Connection)
	OnOpen  func(c *Connection)
	OnData  func(c *Connection, buf []byte, ts time.Time)
	OnClose func(c *Connection, err error)
	OnStop  func(c *Connection)
}

// Connection wraps one accepted socket plus its callback set. Close is
// idempotent; removal from the owning Server's connection table happens
// only after the read loop, including every callback, has returned, so a
// callback invoked mid-teardown never observes its own Connection already
// removed.
type Connection struct {
	conn net.Conn
	cb   Callbacks

	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newConnection(conn net.Conn, cb Callbacks) *Connection {
	return &Connection{conn: conn, cb: cb}
}

// configure enables keep-alive and, where the platform and socket type
// support it, TCP_NODELAY and TCP_QUICKACK — best-effort, never fatal.
func (c *Connection) configure() {
	tc, ok := c.conn.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetKeepAlive(true); err != nil {
		slog.Warn("transport: set keepalive failed", "error", err)
	}
	if err := tc.SetNoDelay(true); err != nil {
		slog.Warn("transport: set nodelay failed", "error", err)
	}

	if raw, err := tc.SyscallConn(); err == nil {
		_ = raw.Control(func(fd uintptr) {
			_ = unix.SetsockoptInt(int(fd), unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
		})
	}
}

// RemoteAddr exposes the peer address for logging.
func (c *Connection) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Write serializes writes through a single mutex so outbound command
// order on one connection always equals caller enqueue order, per
// spec.md §5's single-session ordering guarantee.
func (c *Connection) Write(b []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.Write(b)
}

// Close is idempotent: a second call is a no-op.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

// readLoop issues repeated reads into a fixed 1 KiB buffer, stamping
// each delivery with a monotonic timestamp taken immediately after the
// kernel hands back the bytes — this is what lets the SlimProto session
// measure one-way delay from ping round trips.
func (c *Connection) readLoop() {
	if c.cb.OnStart != nil {
		c.cb.OnStart(c)
	}
	c.configure()
	if c.cb.OnOpen != nil {
		c.cb.OnOpen(c)
	}

	r := bufio.NewReaderSize(c.conn, readBufSize)
	buf := make([]byte, readBufSize)

	var closeErr error
	for {
		n, err := r.Read(buf)
		ts := time.Now()
		if n > 0 && c.cb.OnData != nil {
			c.cb.OnData(c, buf[:n], ts)
		}
		if err != nil {
			closeErr = err
			break
		}
	}

	if c.cb.OnClose != nil {
		c.cb.OnClose(c, closeErr)
	}
	_ = c.Close()
	if c.cb.OnStop != nil {
		c.cb.OnStop(c)
	}
}
