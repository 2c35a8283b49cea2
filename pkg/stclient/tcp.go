package stclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const tcpReadChunk = 64 * 1024

// TCPTransfer downloads FileSize filler bytes over one TCP connection and
// times the body read. Every blocking step is bounded by a deadline.
type TCPTransfer struct {
	Addr        string
	FileSize    uint64
	DialTimeout time.Duration
	IOTimeout   time.Duration
}

// Run returns a best-effort Record even when err is non-nil: a timeout or a
// reset mid-stream still produced timing for the bytes that did arrive.
func (t TCPTransfer) Run(ctx context.Context) (Record, error) {
	rec := Record{Proto: ProtoTCP, BytesRequested: t.FileSize}

	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Addr)
	if err != nil {
		return rec, fmt.Errorf("dial %s: %w", t.Addr, err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(t.IOTimeout))
	if _, err := fmt.Fprintf(conn, "%d\n", t.FileSize); err != nil {
		return rec, fmt.Errorf("send size request: %w", err)
	}

	buf := make([]byte, tcpReadChunk)
	var received uint64
	start := time.Now()

	for received < t.FileSize {
		select {
		case <-ctx.Done():
			rec.Duration = time.Since(start)
			rec.BytesReceived = received
			return rec, ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(t.IOTimeout))
		n, err := conn.Read(buf)
		received += uint64(n)
		if err != nil {
			rec.Duration = time.Since(start)
			rec.BytesReceived = received
			if errors.Is(err, io.EOF) {
				// Peer closed early: partial record, not a fault worth
				// failing the round over.
				return rec, nil
			}
			return rec, fmt.Errorf("read stream: %w", err)
		}
	}

	rec.Duration = time.Since(start)
	rec.BytesReceived = received
	return rec, nil
}
