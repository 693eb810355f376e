package slimproto

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/drgolem/roomcast/internal/roomcasterr"
	"github.com/drgolem/roomcast/internal/timestampcache"
)

// State is the Command Session state machine from spec.md §4.7.
type State int

const (
	StateAccepted State = iota
	StateHeloSeen
	StateNegotiated
	StateStreaming
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateAccepted:
		return "Accepted"
	case StateHeloSeen:
		return "HeloSeen"
	case StateNegotiated:
		return "Negotiated"
	case StateStreaming:
		return "Streaming"
	case StateClosing:
		return "Closing"
	default:
		return "Unknown"
	}
}

// controlWriter is the capability a Session needs from its transport
// connection: an ordered, blocking-until-complete byte write.
type controlWriter interface {
	Write([]byte) (int, error)
}

// LateJoinFunc lets a Session ask its owner whether a stream is already
// in progress when a client HELOs in; if so the session skips straight
// to Streaming instead of waiting in Negotiated for the next handshake.
type LateJoinFunc func() (serverPort uint16, formatByte byte, samplingRate int, ok bool)

// Session is one client's SlimProto control-channel state machine.
type Session struct {
	conn         controlWriter
	lateJoin     LateJoinFunc
	onStatEvent  func(clientID string, st Stat)
	onClientID   func(clientID string)

	state   State
	clientID string
	helo    Helo

	responseReceived  bool
	connectedReceived bool
	currentRate       int

	pingCache *timestampcache.Cache
	recvBuf   []byte
}

// Options configures callbacks a Session invokes as protocol events
// occur; all are optional.
type Options struct {
	LateJoin    LateJoinFunc
	OnStatEvent func(clientID string, st Stat)
	OnClientID  func(clientID string)
}

func NewSession(conn controlWriter, opts Options) *Session {
	return &Session{
		conn:        conn,
		lateJoin:    opts.LateJoin,
		onStatEvent: opts.OnStatEvent,
		onClientID:  opts.OnClientID,
		state:       StateAccepted,
		pingCache:   timestampcache.New(),
	}
}

func (s *Session) State() State      { return s.state }
func (s *Session) ClientID() string  { return s.clientID }

// Linked reports whether this session's data channel (C8) may be
// considered attached: both the client's STMc (data socket connected)
// and its RESP (parsed our HTTP reply) must have been observed.
func (s *Session) Linked() bool {
	return s.connectedReceived && s.responseReceived
}

// HandleData accumulates bytes from the connection's read loop and
// dispatches every complete command found. Returns an error only when
// the session must be closed (protocol violation); partial commands are
// buffered until the rest arrives, per spec.md §9's "accumulate until
// complete" guidance.
func (s *Session) HandleData(buf []byte) error {
	s.recvBuf = append(s.recvBuf, buf...)

	for {
		if len(s.recvBuf) < 8 {
			return nil
		}
		opcode := string(s.recvBuf[0:4])
		length := binary.BigEndian.Uint32(s.recvBuf[4:8])
		total := 8 + int(length)
		if len(s.recvBuf) < total {
			return nil
		}

		body := s.recvBuf[8:total]
		s.recvBuf = s.recvBuf[total:]

		if err := s.dispatch(opcode, body); err != nil {
			return err
		}
	}
}

func (s *Session) dispatch(opcode string, body []byte) error {
	if s.state == StateAccepted && opcode != "HELO" {
		return fmt.Errorf("slimproto: %w: expected HELO, got %q", roomcasterr.ErrUnexpectedOpcode, opcode)
	}

	switch opcode {
	case "HELO":
		return s.handleHelo(body)
	case "STAT":
		s.handleStat(body)
		return nil
	case "RESP":
		s.responseReceived = true
		return nil
	case "DSCO":
		dsco := decodeDsco(body)
		slog.Info("slimproto: disconnect notice", "client", s.clientID, "reason", dsco.Reason)
		s.state = StateClosing
		return nil
	case "SETD":
		slog.Debug("slimproto: device settings reply", "client", s.clientID, "bytes", len(body))
		return nil
	default:
		return fmt.Errorf("slimproto: %w: %q", roomcasterr.ErrUnexpectedOpcode, opcode)
	}
}

func (s *Session) handleHelo(body []byte) error {
	s.helo = decodeHelo(body)
	s.clientID = formatMAC(s.helo.MAC)
	s.state = StateHeloSeen
	if s.onClientID != nil {
		s.onClientID(s.clientID)
	}

	// P4: strm(stop), setd(RequestName), setd(Squeezebox3), aude, audg
	// must be emitted in exactly this order before any strm(start).
	if err := s.send(EncodeStrmStop()); err != nil {
		return err
	}
	if err := s.send(EncodeSetd(SetdRequestName, "")); err != nil {
		return err
	}
	if err := s.send(EncodeSetd(SetdSqueezebox3, "Squeezebox3")); err != nil {
		return err
	}
	if err := s.send(EncodeAude(true, true)); err != nil {
		return err
	}
	if err := s.send(EncodeAudgDefault()); err != nil {
		return err
	}

	if s.lateJoin != nil {
		if port, format, rate, ok := s.lateJoin(); ok {
			if err := s.send(EncodeStrmStart(port, format, rate, s.clientID)); err != nil {
				return err
			}
			s.currentRate = rate
			s.state = StateStreaming
			return nil
		}
	}

	s.state = StateNegotiated
	return nil
}

func (s *Session) handleStat(body []byte) {
	st := decodeStat(body)
	if st.Event == EventConnected {
		s.connectedReceived = true
	}
	if elapsed, ok := s.pingCache.Take(st.ServerTimestamp, time.Now()); ok {
		slog.Debug("slimproto: one-way-delay sample", "client", s.clientID, "elapsed", elapsed)
	}
	if s.onStatEvent != nil {
		s.onStatEvent(s.clientID, st)
	}
}

// StartStreaming moves a Negotiated or already-Streaming session to
// Streaming at samplingRate, sending strm(stop) first whenever a stream
// was already underway (a rate change) per spec.md §4.8.
func (s *Session) StartStreaming(serverPort uint16, formatByte byte, samplingRate int) error {
	if s.state == StateStreaming && s.currentRate != samplingRate {
		if err := s.send(EncodeStrmStop()); err != nil {
			return err
		}
		s.responseReceived = false
		s.connectedReceived = false
	}
	if err := s.send(EncodeStrmStart(serverPort, formatByte, samplingRate, s.clientID)); err != nil {
		return err
	}
	s.currentRate = samplingRate
	s.state = StateStreaming
	return nil
}

// SamplingRate returns the last rate negotiated via StartStreaming.
func (s *Session) SamplingRate() int { return s.currentRate }

// Ping sends a strm(time) and records the send timestamp only once the
// write has fully completed, so a failed/partial send never creates a
// phantom cache entry awaiting a reply.
func (s *Session) Ping() error {
	key := s.pingCache.Reserve()
	if err := s.send(EncodeStrmTime(key)); err != nil {
		return err
	}
	s.pingCache.Commit(key, time.Now())
	return nil
}

// send writes a fully-framed command. net.Conn.Write already loops
// internally until the whole buffer is written or an error occurs, so a
// single call here satisfies the "complete partial writes before
// committing" requirement.
func (s *Session) send(frame []byte) error {
	_, err := s.conn.Write(frame)
	return err
}

func formatMAC(mac [6]byte) string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", mac[0], mac[1], mac[2], mac[3], mac[4], mac[5])
}
