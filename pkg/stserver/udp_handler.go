package stserver

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

var segmentFiller = bytes.Repeat([]byte{'X'}, wire.SegmentSize)

// maxPacingDelay caps the per-segment pause. The scaling below is
// best-effort flow pacing to keep the send buffer breathing, not a loss
// prevention guarantee; both constants are tunables.
const maxPacingDelay = time.Millisecond

func pacingDelay(fileSize uint64) time.Duration {
	scaled := time.Duration(float64(fileSize) / float64(100<<20) * float64(time.Second))
	if scaled > maxPacingDelay {
		return maxPacingDelay
	}
	return scaled
}

// handleUDPRequest streams ceil(fileSize/SegmentSize) numbered payload
// datagrams back to the requester. Cancellation is checked per segment so a
// shutdown mid-transfer halts promptly.
func (s *Server) handleUDPRequest(ctx context.Context, peer *net.UDPAddr, fileSize uint64) {
	s.collector.ObserveRequest(string(protoUDP))
	s.collector.HandlerStarted()
	defer s.collector.HandlerFinished()

	total := wire.SegmentCount(fileSize)
	delay := pacingDelay(fileSize)

	internal.Info("udp test request", internal.Fields{
		internal.FieldAddr:  peer.String(),
		internal.FieldBytes: fileSize,
		"segments":          total,
	})

	buf := s.bufPool.GetBuffer()
	defer s.bufPool.PutBuffer(buf)

	for i := uint64(0); i < total; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		remaining := fileSize - i*wire.SegmentSize
		if remaining > wire.SegmentSize {
			remaining = wire.SegmentSize
		}

		header := wire.PayloadHeader{Total: total, Segment: i}
		n, err := header.EncodePayload(buf, segmentFiller[:remaining])
		if err != nil {
			internal.Error("payload encode failed", internal.Fields{
				internal.FieldError: err.Error(),
			})
			return
		}

		if _, err := s.udpConn.WriteToUDP(buf[:n], peer); err != nil {
			internal.Warn("udp segment send failed", internal.Fields{
				internal.FieldAddr:  peer.String(),
				internal.FieldError: err.Error(),
				"segment":           i,
			})
			return
		}
		s.collector.ObserveBytesSent(string(protoUDP), int(remaining))

		if delay > 0 {
			time.Sleep(delay)
		}
	}
}
