package discovery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/hadaraza/Client-Server-HR/pkg/wire"
	"github.com/stretchr/testify/require"
)

func listenerOnLoopback(t *testing.T) (*Listener, int) {
	t.Helper()
	// Bind port 0 so parallel tests never collide, then read the real port
	// back from the socket.
	l, err := NewListener(context.Background(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, l.conn.LocalAddr().(*net.UDPAddr).Port
}

func TestWaitForOfferReturnsFirstValidOffer(t *testing.T) {
	l, port := listenerOnLoopback(t)

	sender, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer sender.Close()
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}

	want := wire.Offer{UDPPort: 23000, TCPPort: 24000}
	go func() {
		var buf [wire.OfferLen]byte
		want.Encode(buf[:])
		for i := 0; i < 5; i++ {
			sender.WriteTo(buf[:], dst)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	got, addr, err := l.WaitForOffer(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.NotNil(t, addr)
}

func TestWaitForOfferIgnoresGarbage(t *testing.T) {
	l, port := listenerOnLoopback(t)
	l.wakeInterval = 100 * time.Millisecond

	sender, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer sender.Close()
	dst := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port}

	want := wire.Offer{UDPPort: 20001, TCPPort: 20002}
	go func() {
		// Too short for an offer (8 bytes), foreign magic, wrong type, then
		// the real thing.
		sender.WriteTo(make([]byte, wire.OfferLen-1), dst)
		sender.WriteTo([]byte{0xde, 0xad, 0xbe, 0xef, 0x02, 0, 1, 0, 2}, dst)
		var req [wire.RequestLen]byte
		(&wire.Request{FileSize: 42}).Encode(req[:])
		sender.WriteTo(req[:], dst)
		time.Sleep(50 * time.Millisecond)
		var buf [wire.OfferLen]byte
		want.Encode(buf[:])
		sender.WriteTo(buf[:], dst)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	got, _, err := l.WaitForOffer(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestWaitForOfferHonoursContext(t *testing.T) {
	l, _ := listenerOnLoopback(t)
	l.wakeInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, _, err := l.WaitForOffer(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBroadcasterEmitsDecodableOffers(t *testing.T) {
	sink, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer sink.Close()
	port := sink.LocalAddr().(*net.UDPAddr).Port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	offer := wire.Offer{UDPPort: 30001, TCPPort: 30002}
	b, err := NewBroadcaster(ctx, offer, "127.0.0.1", port, 20*time.Millisecond)
	require.NoError(t, err)

	go b.Run(ctx)

	buf := make([]byte, 64)
	sink.SetReadDeadline(time.Now().Add(3 * time.Second))
	n, _, err := sink.ReadFrom(buf)
	require.NoError(t, err)
	require.Equal(t, wire.OfferLen, n)

	var got wire.Offer
	_, err = got.Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, offer, got)
}

func TestStateTransitions(t *testing.T) {
	s := StateStartup

	s, err := s.StartLooking()
	require.NoError(t, err)
	require.Equal(t, StateLookingForServer, s)

	s, err = s.OfferAccepted()
	require.NoError(t, err)
	require.Equal(t, StateSpeedTest, s)

	// Round finished, back to looking.
	s, err = s.StartLooking()
	require.NoError(t, err)
	require.Equal(t, StateLookingForServer, s)

	_, err = s.StartLooking()
	require.Error(t, err)
	_, err = StateStartup.OfferAccepted()
	require.Error(t, err)
}
