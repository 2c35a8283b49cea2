package stclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

// UDPTransfer requests FileSize bytes as numbered segments and counts what
// actually arrives. UDP has no completion signal: the transfer ends when the
// segment set is full or when nothing arrives within Timeout, and the second
// case is indistinguishable from a very slow sender. That ambiguity is part
// of the protocol.
type UDPTransfer struct {
	Addr     *net.UDPAddr
	FileSize uint64
	Timeout  time.Duration
}

func (t UDPTransfer) Run(ctx context.Context) (Record, error) {
	rec := Record{Proto: ProtoUDP, BytesRequested: t.FileSize}

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return rec, fmt.Errorf("open udp socket: %w", err)
	}
	defer conn.Close()

	var reqBuf [wire.RequestLen]byte
	req := wire.Request{FileSize: t.FileSize}
	if _, err := req.Encode(reqBuf[:]); err != nil {
		return rec, fmt.Errorf("encode request: %w", err)
	}
	if _, err := conn.WriteToUDP(reqBuf[:], t.Addr); err != nil {
		return rec, fmt.Errorf("send request: %w", err)
	}

	// Nothing to stream for an empty file; the transfer is complete the
	// moment the request is out.
	if t.FileSize == 0 {
		return rec, nil
	}

	buf := make([]byte, wire.PayloadHeaderLen+wire.SegmentSize+512)
	received := make(map[uint64]struct{})
	var header wire.PayloadHeader
	var total uint64
	totalKnown := false
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			rec.Duration = time.Since(start)
			rec.SegmentsReceived = uint64(len(received))
			rec.SegmentsTotal = total
			rec.NoData = !totalKnown
			return rec, ctx.Err()
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(t.Timeout))
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				// Receive window expired: treat as end of transfer.
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			rec.Duration = time.Since(start)
			rec.SegmentsReceived = uint64(len(received))
			rec.SegmentsTotal = total
			rec.NoData = !totalKnown
			return rec, fmt.Errorf("read payload: %w", err)
		}

		if _, err := header.Decode(buf[:n]); err != nil {
			continue
		}

		if !totalKnown {
			total = header.Total
			totalKnown = true
		}
		if header.Segment >= total {
			continue
		}
		if _, dup := received[header.Segment]; !dup {
			received[header.Segment] = struct{}{}
			rec.BytesReceived += uint64(n - wire.PayloadHeaderLen)
		}

		if totalKnown && uint64(len(received)) == total {
			break
		}
	}

	rec.Duration = time.Since(start)
	rec.SegmentsReceived = uint64(len(received))
	rec.SegmentsTotal = total
	rec.NoData = !totalKnown
	return rec, nil
}
