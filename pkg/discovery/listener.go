package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

const defaultWakeInterval = time.Second

// Listener waits on the well-known offer port for server broadcasts. The
// port is bound with SO_REUSEADDR so several clients on one host can listen
// at once.
type Listener struct {
	conn         *net.UDPConn
	wakeInterval time.Duration
}

func NewListener(ctx context.Context, offerPort int) (*Listener, error) {
	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf(":%d", offerPort))
	if err != nil {
		return nil, fmt.Errorf("bind offer port %d: %w", offerPort, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, errors.New("offer listener is not a udp socket")
	}
	return &Listener{
		conn:         conn,
		wakeInterval: defaultWakeInterval,
	}, nil
}

// WaitForOffer blocks until the first valid offer arrives or ctx is
// cancelled. Foreign, short or non-offer datagrams are dropped and the wait
// resumes. Offers broadcast after this returns are simply left in the socket
// buffer until the next call.
func (l *Listener) WaitForOffer(ctx context.Context) (wire.Offer, *net.UDPAddr, error) {
	buf := make([]byte, 1024)
	var offer wire.Offer

	for {
		select {
		case <-ctx.Done():
			return wire.Offer{}, nil, ctx.Err()
		default:
		}

		_ = l.conn.SetReadDeadline(time.Now().Add(l.wakeInterval))
		n, addr, err := l.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return wire.Offer{}, nil, err
			}
			return wire.Offer{}, nil, fmt.Errorf("read offer socket: %w", err)
		}
		if n == 0 {
			continue
		}

		if _, err := offer.Decode(buf[:n]); err != nil {
			internal.Debug("ignoring foreign datagram on offer port", internal.Fields{
				internal.FieldAddr:  addr.String(),
				internal.FieldBytes: n,
			})
			continue
		}

		internal.Info("received offer", internal.Fields{
			internal.FieldAddr: addr.IP.String(),
			"udp_port":         offer.UDPPort,
			"tcp_port":         offer.TCPPort,
		})
		return offer, addr, nil
	}
}

func (l *Listener) Close() error {
	return l.conn.Close()
}
