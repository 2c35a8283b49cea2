package stserver

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hadaraza/Client-Server-HR/internal"
)

type proto string

const (
	protoTCP proto = "tcp"
	protoUDP proto = "udp"
)

const (
	tcpRequestTimeout = 5 * time.Second
	tcpWriteTimeout   = 10 * time.Second
	tcpChunkSize      = 64 * 1024
)

var chunkFiller = bytes.Repeat([]byte{'X'}, tcpChunkSize)

// handleTCPConn serves one client connection: read the decimal size line,
// stream exactly that many filler bytes in bounded chunks, close. A write
// error terminates this handler and nothing else.
func (s *Server) handleTCPConn(ctx context.Context, conn *net.TCPConn) {
	defer conn.Close()

	s.collector.ObserveRequest(string(protoTCP))
	s.collector.HandlerStarted()
	defer s.collector.HandlerFinished()

	_ = conn.SetReadDeadline(time.Now().Add(tcpRequestTimeout))
	line, err := bufio.NewReaderSize(conn, 64).ReadString('\n')
	if err != nil {
		internal.Warn("tcp request read failed", internal.Fields{
			internal.FieldAddr:  conn.RemoteAddr().String(),
			internal.FieldError: err.Error(),
		})
		return
	}

	fileSize, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
	if err != nil {
		internal.Warn("tcp request not a decimal size", internal.Fields{
			internal.FieldAddr:  conn.RemoteAddr().String(),
			internal.FieldError: err.Error(),
		})
		return
	}

	internal.Info("tcp test request", internal.Fields{
		internal.FieldAddr:  conn.RemoteAddr().String(),
		internal.FieldBytes: fileSize,
	})

	var sent uint64
	for sent < fileSize {
		select {
		case <-ctx.Done():
			return
		default:
		}

		chunk := uint64(tcpChunkSize)
		if remaining := fileSize - sent; remaining < chunk {
			chunk = remaining
		}

		_ = conn.SetWriteDeadline(time.Now().Add(tcpWriteTimeout))
		n, err := conn.Write(chunkFiller[:chunk])
		sent += uint64(n)
		s.collector.ObserveBytesSent(string(protoTCP), n)
		if err != nil {
			internal.Warn("tcp stream write failed", internal.Fields{
				internal.FieldAddr:  conn.RemoteAddr().String(),
				internal.FieldError: err.Error(),
				internal.FieldBytes: sent,
			})
			return
		}
	}
}
