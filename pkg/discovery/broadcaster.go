package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

const sendFailureBackoff = 5 * time.Second

// Broadcaster periodically announces the server's service ports on the
// well-known offer port. Ports never change for the life of the server, so
// the offer bytes are built once.
type Broadcaster struct {
	conn     *net.UDPConn
	dst      *net.UDPAddr
	payload  [wire.OfferLen]byte
	interval time.Duration

	// OnBroadcast, when set, is called after every successful send.
	OnBroadcast func()
}

// NewBroadcaster opens a broadcast-capable UDP socket aimed at
// broadcastAddr:offerPort. broadcastAddr is normally the limited broadcast
// address; tests point it at loopback.
func NewBroadcaster(ctx context.Context, offer wire.Offer, broadcastAddr string, offerPort int, interval time.Duration) (*Broadcaster, error) {
	ip := net.ParseIP(broadcastAddr)
	if ip == nil {
		return nil, fmt.Errorf("invalid broadcast address %q", broadcastAddr)
	}

	lc := net.ListenConfig{Control: allowBroadcast}
	pc, err := lc.ListenPacket(ctx, "udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("open broadcast socket: %w", err)
	}

	b := &Broadcaster{
		conn:     pc.(*net.UDPConn),
		dst:      &net.UDPAddr{IP: ip, Port: offerPort},
		interval: interval,
	}
	if _, err := offer.Encode(b.payload[:]); err != nil {
		pc.Close()
		return nil, fmt.Errorf("encode offer: %w", err)
	}
	return b, nil
}

// Run broadcasts until ctx is cancelled. A failed send is non-fatal: it logs
// and backs off before the next attempt.
func (b *Broadcaster) Run(ctx context.Context) {
	defer b.conn.Close()

	for {
		wait := b.interval
		if _, err := b.conn.WriteToUDP(b.payload[:], b.dst); err != nil {
			internal.Warn("offer broadcast failed", internal.Fields{
				internal.FieldError: err.Error(),
				internal.FieldAddr:  b.dst.String(),
			})
			wait = sendFailureBackoff
		} else if b.OnBroadcast != nil {
			b.OnBroadcast()
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
