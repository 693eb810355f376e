// Package streamer implements C9: fan-out of chunks to every connected
// client session whose negotiated sampling rate matches, renegotiating
// (and dropping chunks in the interim) any session that doesn't.
package streamer

import (
	"log/slog"
	"sync"

	"github.com/drgolem/roomcast/internal/chunk"
)

// ControlSession is the slice of slimproto.Session's behaviour the
// Streamer depends on.
type ControlSession interface {
	SamplingRate() int
	StartStreaming(serverPort uint16, formatByte byte, samplingRate int) error
	Linked() bool
}

// DataSession is the slice of datastream.Session's behaviour the
// Streamer depends on.
type DataSession interface {
	OnChunk(c *chunk.Chunk)
}

type client struct {
	ctrl ControlSession
	data DataSession
}

// Streamer owns no global queue — each client's DataSession does its
// own double-buffering and back-pressure independently.
type Streamer struct {
	serverPort uint16
	formatByte byte

	mu      sync.Mutex
	clients map[string]*client
}

func New(serverPort uint16, formatByte byte) *Streamer {
	return &Streamer{
		serverPort: serverPort,
		formatByte: formatByte,
		clients:    make(map[string]*client),
	}
}

// AddClient registers a newly HELO'd control session. No data session is
// attached yet; chunks are dropped for this client until one is.
func (st *Streamer) AddClient(clientID string, ctrl ControlSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.clients[clientID] = &client{ctrl: ctrl}
}

// AttachDataSession binds (or replaces) the data channel for clientID,
// called once its HTTP handshake completes.
func (st *Streamer) AttachDataSession(clientID string, data DataSession) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if c, ok := st.clients[clientID]; ok {
		c.data = data
	}
}

// RemoveClient drops a client whose control or data socket closed.
func (st *Streamer) RemoveClient(clientID string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.clients, clientID)
}

// OnChunk fans c out to every client at c's sampling rate. A session at
// a different rate is re-handshaked (strm stop/start) and has its data
// session reference cleared so chunks are dropped until a fresh HTTP
// connection reattaches it (P8).
func (st *Streamer) OnChunk(c *chunk.Chunk) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, cl := range st.clients {
		if cl.ctrl.SamplingRate() != c.SamplingRate() {
			if err := cl.ctrl.StartStreaming(st.serverPort, st.formatByte, c.SamplingRate()); err != nil {
				slog.Warn("streamer: renegotiation failed", "client", id, "error", err)
			}
			cl.data = nil
			continue
		}

		if cl.data == nil || !cl.ctrl.Linked() {
			continue
		}

		cl.data.OnChunk(c)
	}
}

// ClientCount reports the number of registered clients, for diagnostics.
func (st *Streamer) ClientCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.clients)
}
