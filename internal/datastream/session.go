package datastream

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/drgolem/roomcast/internal/chunk"
	"github.com/drgolem/roomcast/internal/encoder"
	"github.com/drgolem/roomcast/internal/roomcasterr"
)

// socketWriter is the capability a Session needs from its transport
// connection.
type socketWriter interface {
	Write([]byte) (int, error)
	Close() error
}

// Session is the per-client HTTP data channel (C8): it owns the bound
// Encoder for this client and forwards chunks at the negotiated
// sampling rate, dropping anything else.
type Session struct {
	conn           socketWriter
	clientID       string
	serverName     string
	serverVersion  string
	negotiatedRate int
	enc            encoder.Encoder

	mu         sync.Mutex
	pending    []byte
	pendingSet bool
	writing    bool

	encoderStopped int
	socketStopped  int
}

func NewSession(conn socketWriter, serverName, serverVersion string) *Session {
	return &Session{conn: conn, serverName: serverName, serverVersion: serverVersion}
}

// HandleOpeningRequest parses the request line of the first bytes
// received on a freshly opened data socket. Only GET is accepted;
// missing a client id closes the session per spec.md §4.6.
func (s *Session) HandleOpeningRequest(data []byte) error {
	line := data
	if idx := indexOfAny(data, "\r\n"); idx >= 0 {
		line = data[:idx]
	}
	fields := strings.Fields(string(line))
	if len(fields) < 2 || fields[0] != "GET" {
		return roomcasterr.ErrNotGet
	}

	id, ok := ExtractClientID(fields[1])
	if !ok {
		return roomcasterr.ErrMissingClientID
	}
	s.clientID = id
	return nil
}

func indexOfAny(data []byte, chars string) int {
	for i, b := range data {
		for _, c := range []byte(chars) {
			if b == c {
				return i
			}
		}
	}
	return -1
}

func (s *Session) ClientID() string { return s.clientID }

// Bind attaches the encoder this session will drive, at the rate it was
// built for. Must be called before the first OnChunk.
func (s *Session) Bind(enc encoder.Encoder, samplingRate int) {
	s.enc = enc
	s.negotiatedRate = samplingRate
}

func (s *Session) SamplingRate() int { return s.negotiatedRate }

// SendReply writes the HTTP response headers per spec.md §4.6/§6. The
// Content-Type is sourced from the bound encoder's own MIME getter
// rather than recomputed here, so there is exactly one place that maps
// a format to its MIME type (Bind must be called first).
func (s *Session) SendReply() error {
	reply := fmt.Sprintf("HTTP/1.1 200 OK\r\nServer: %s (%s)\r\nConnection: close\r\nContent-Type: %s\r\n\r\n",
		s.serverName, s.serverVersion, s.enc.MIME())
	_, err := s.conn.Write([]byte(reply))
	return err
}

// OnChunk forwards a chunk if its sampling rate matches the session's
// negotiated rate; otherwise it is skipped with a warning — a rate
// mismatch is the Streamer's job to resolve by re-handshaking (P8).
func (s *Session) OnChunk(c *chunk.Chunk) {
	if c.SamplingRate() != s.negotiatedRate {
		slog.Warn("datastream: dropping chunk at unexpected rate", "client", s.clientID, "got", c.SamplingRate(), "want", s.negotiatedRate)
		return
	}

	s.mu.Lock()
	if s.pendingSet {
		slog.Warn("datastream: dropping pending chunk, slow client", "client", s.clientID)
	}
	s.pending = append(s.pending[:0], c.Bytes()...)
	s.pendingSet = true
	shouldDrain := !s.writing
	if shouldDrain {
		s.writing = true
	}
	s.mu.Unlock()

	if shouldDrain {
		s.drain()
	}
}

// drain keeps encoding+writing pending data until none remains. It runs
// synchronously on the goroutine of the OnChunk call that started it; the
// writing flag ensures at most one drain, and so at most one in-flight
// write, per session at a time.
func (s *Session) drain() {
	for {
		s.mu.Lock()
		if !s.pendingSet {
			s.writing = false
			s.mu.Unlock()
			return
		}
		data := s.pending
		s.pending = nil
		s.pendingSet = false
		s.mu.Unlock()

		if err := s.enc.Encode(data); err != nil {
			slog.Warn("datastream: encode failed", "client", s.clientID, "error", err)
		}
	}
}

// Stop drains the encoder before closing the socket — verified by the
// test suite (P6/scenario 5) via encoderStopped/socketStopped ordering.
func (s *Session) Stop(onDone func(err error)) {
	var err error
	if s.enc != nil {
		err = s.enc.Finish()
	}
	s.encoderStopped++

	closeErr := s.conn.Close()
	s.socketStopped++
	if err == nil {
		err = closeErr
	}

	if onDone != nil {
		onDone(err)
	}
}

// EncoderStopCount and SocketStopCount expose ordering counters for
// tests verifying P6.
func (s *Session) EncoderStopCount() int { return s.encoderStopped }
func (s *Session) SocketStopCount() int  { return s.socketStopped }
