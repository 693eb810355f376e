package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brutella/dnssd"
)

// serviceType is the DNS-SD service type this broadcaster announces
// itself under, so clients that prefer mDNS over the legacy UDP beacon
// can still find it.
const serviceType = "_roomcast._tcp"

// Announcer publishes a DNS-SD/mDNS record advertising the SlimProto
// control port. Purely additive: no SlimProto client requires it, the
// UDPResponder alone implements the spec's literal discovery contract.
type Announcer struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
	doneCh    chan struct{}
}

// Announce registers and starts responding to mDNS queries for name on
// the given SlimProto control port.
func Announce(name string, slimprotoPort int) (*Announcer, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: serviceType,
		Port: slimprotoPort,
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("discovery: create dns-sd service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("discovery: create dns-sd responder: %w", err)
	}

	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("discovery: add dns-sd service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{
		responder: responder,
		cancel:    cancel,
		doneCh:    make(chan struct{}),
	}

	go func() {
		defer close(a.doneCh)
		if err := responder.Respond(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("discovery: dns-sd responder stopped", "error", err)
		}
	}()

	slog.Info("discovery: announcing via dns-sd", "name", name, "type", serviceType, "port", slimprotoPort)
	return a, nil
}

// Stop withdraws the service announcement and waits for the responder
// goroutine to exit.
func (a *Announcer) Stop() {
	a.cancel()
	<-a.doneCh
}
