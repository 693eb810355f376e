package transport

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// Server is an accept loop bound to one TCP port, owning the set of
// live Connections it has accepted. The acceptor re-arms itself after
// every accept until MaxConnections is reached, at which point it stops
// accepting new sockets until the next connection closes — bounding the
// outstanding-SYN count per spec.md §4.4.
type Server struct {
	addr           string
	maxConnections int
	newCallbacks   func(conn net.Conn) Callbacks

	mu        sync.Mutex
	listener  net.Listener
	conns     map[*Connection]struct{}
	stopped   bool
	resumeCh  chan struct{}
}

// NewServer binds no socket yet; Start does. newCallbacks is invoked
// once per accepted connection to build its Callbacks, so the caller
// can close over per-connection protocol state (e.g. a fresh SlimProto
// session).
func NewServer(addr string, maxConnections int, newCallbacks func(conn net.Conn) Callbacks) *Server {
	return &Server{
		addr:           addr,
		maxConnections: maxConnections,
		newCallbacks:   newCallbacks,
		conns:          make(map[*Connection]struct{}),
		resumeCh:       make(chan struct{}, 1),
	}
}

// Start binds the listening socket and runs the accept loop until Stop
// is called or the listener errors out.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("transport: listen %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	slog.Info("transport: server listening", "addr", s.addr)

	for {
		if s.atCapacity() {
			<-s.resumeCh
			if s.isStopped() {
				return nil
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() {
				return nil
			}
			slog.Warn("transport: accept failed", "error", err)
			continue
		}

		c := newConnection(conn, s.newCallbacks(conn))
		s.addConn(c)

		go func() {
			c.readLoop()
			s.removeConn(c)
		}()
	}
}

func (s *Server) atCapacity() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxConnections > 0 && len(s.conns) >= s.maxConnections
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Server) addConn(c *Connection) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

// removeConn drops a closed connection from the live set on the next
// turn after its read loop has fully unwound, then signals the accept
// loop in case it was parked at capacity.
func (s *Server) removeConn(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()

	select {
	case s.resumeCh <- struct{}{}:
	default:
	}
}

// Stop closes the listener and every live connection. Safe to call once.
func (s *Server) Stop() error {
	s.mu.Lock()
	s.stopped = true
	ln := s.listener
	conns := make([]*Connection, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	select {
	case s.resumeCh <- struct{}{}:
	default:
	}

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	return err
}

// ConnectionCount reports how many connections are currently live.
func (s *Server) ConnectionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
