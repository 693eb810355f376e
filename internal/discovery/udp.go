// Package discovery implements client autodiscovery: the legacy UDP
// beacon SlimProto clients broadcast on power-up (spec.md §6, out of
// scope for the core but accepted as a trivial satellite), plus an
// additional DNS-SD/mDNS announcer for networks that prefer it.
package discovery

import (
	"log/slog"
	"net"
)

// probeMagic is the single byte a SlimProto client sends to discover a
// server: 'd' for "discover". Any other first byte is ignored.
const probeMagic = 'd'

// UDPResponder answers the fixed discovery probe with a server
// identifier packet so clients on the LAN can find this broadcaster
// without being configured with its address.
type UDPResponder struct {
	serverName string
	conn       *net.UDPConn
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewUDPResponder(serverName string) *UDPResponder {
	return &UDPResponder{serverName: serverName}
}

// Start binds the discovery port and answers probes until Stop.
func (r *UDPResponder) Start(addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}

	r.conn = conn
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.serve()
	return nil
}

func (r *UDPResponder) serve() {
	defer close(r.doneCh)

	buf := make([]byte, 64)
	for {
		n, peer, err := r.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-r.stopCh:
				return
			default:
				slog.Warn("discovery: udp read failed", "error", err)
				return
			}
		}
		if n < 1 || buf[0] != probeMagic {
			continue
		}

		reply := buildIdentifierPacket(r.serverName)
		if _, err := r.conn.WriteToUDP(reply, peer); err != nil {
			slog.Warn("discovery: udp reply failed", "peer", peer, "error", err)
		}
	}
}

// buildIdentifierPacket responds 'D' (discover-reply) followed by the
// server name, truncated to fit a single UDP datagram comfortably.
func buildIdentifierPacket(serverName string) []byte {
	name := serverName
	const maxLen = 63
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return append([]byte{'D'}, []byte(name)...)
}

// Stop closes the discovery socket and waits for the serve loop to exit.
func (r *UDPResponder) Stop() error {
	if r.conn == nil {
		return nil
	}
	close(r.stopCh)
	err := r.conn.Close()
	<-r.doneCh
	return err
}
