package stclient

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/hadaraza/Client-Server-HR/pkg/wire"
	"github.com/stretchr/testify/require"
)

// fakeTCPServer serves size-line requests with filler bytes in 64KB chunks.
func fakeTCPServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				line, err := bufio.NewReader(c).ReadString('\n')
				if err != nil {
					return
				}
				size, err := strconv.ParseUint(strings.TrimSpace(line), 10, 64)
				if err != nil {
					return
				}
				chunk := bytes.Repeat([]byte{'X'}, 64*1024)
				for size > 0 {
					n := uint64(len(chunk))
					if size < n {
						n = size
					}
					if _, err := c.Write(chunk[:n]); err != nil {
						return
					}
					size -= n
				}
			}(conn)
		}
	}()
	return ln.Addr().String()
}

func TestTCPTransferReceivesExactly(t *testing.T) {
	addr := fakeTCPServer(t)

	rec, err := TCPTransfer{
		Addr:        addr,
		FileSize:    200_000,
		DialTimeout: 2 * time.Second,
		IOTimeout:   5 * time.Second,
	}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(200_000), rec.BytesReceived)
	require.Greater(t, rec.Duration, time.Duration(0))
	_, ok := rec.Speed()
	require.True(t, ok)
}

func TestTCPTransferPartialOnEarlyClose(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		bufio.NewReader(conn).ReadString('\n')
		conn.Write(bytes.Repeat([]byte{'X'}, 1000))
		conn.Close()
	}()

	rec, err := TCPTransfer{
		Addr:        ln.Addr().String(),
		FileSize:    10_000,
		DialTimeout: 2 * time.Second,
		IOTimeout:   2 * time.Second,
	}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(1000), rec.BytesReceived)
	require.Equal(t, uint64(10_000), rec.BytesRequested)
}

// fakeUDPServer answers one request by streaming segments, optionally out of
// order and with duplicates.
func fakeUDPServer(t *testing.T, shuffle bool, duplicates int) *net.UDPAddr {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	go func() {
		buf := make([]byte, 2048)
		var req wire.Request
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		n, peer, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if _, err := req.Decode(buf[:n]); err != nil {
			return
		}

		total := wire.SegmentCount(req.FileSize)
		order := make([]uint64, 0, total)
		for i := uint64(0); i < total; i++ {
			order = append(order, i)
		}
		if shuffle {
			for i := range order {
				j := (i * 7) % len(order)
				order[i], order[j] = order[j], order[i]
			}
		}
		for d := 0; d < duplicates && total > 0; d++ {
			order = append(order, 0)
		}

		out := make([]byte, wire.PayloadHeaderLen+wire.SegmentSize)
		filler := bytes.Repeat([]byte{'X'}, wire.SegmentSize)
		for _, seg := range order {
			remaining := req.FileSize - seg*wire.SegmentSize
			if remaining > wire.SegmentSize {
				remaining = wire.SegmentSize
			}
			header := wire.PayloadHeader{Total: total, Segment: seg}
			n, err := header.EncodePayload(out, filler[:remaining])
			if err != nil {
				return
			}
			conn.WriteToUDP(out[:n], peer)
		}
	}()

	return conn.LocalAddr().(*net.UDPAddr)
}

func TestUDPTransferAllSegments(t *testing.T) {
	addr := fakeUDPServer(t, false, 0)

	rec, err := UDPTransfer{
		Addr:     addr,
		FileSize: 10_000,
		Timeout:  time.Second,
	}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, wire.SegmentCount(10_000), rec.SegmentsTotal)
	require.Equal(t, rec.SegmentsTotal, rec.SegmentsReceived)
	require.Equal(t, uint64(10_000), rec.BytesReceived)
	require.Equal(t, 0.0, rec.LossRate())
	require.False(t, rec.NoData)
}

func TestUDPTransferDuplicatesCountedOnce(t *testing.T) {
	addr := fakeUDPServer(t, true, 5)

	rec, err := UDPTransfer{
		Addr:     addr,
		FileSize: 8 * wire.SegmentSize,
		Timeout:  time.Second,
	}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(8), rec.SegmentsTotal)
	require.LessOrEqual(t, rec.SegmentsReceived, rec.SegmentsTotal)
	require.LessOrEqual(t, rec.BytesReceived, uint64(8*wire.SegmentSize))
}

func TestUDPTransferZeroFileSize(t *testing.T) {
	sink, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sink.Close()

	start := time.Now()
	rec, err := UDPTransfer{
		Addr:     sink.LocalAddr().(*net.UDPAddr),
		FileSize: 0,
		Timeout:  5 * time.Second,
	}.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(0), rec.SegmentsTotal)
	require.Equal(t, uint64(0), rec.SegmentsReceived)
	require.Equal(t, 0.0, rec.LossRate())
	// Completes immediately rather than waiting out the receive window.
	require.Less(t, time.Since(start), time.Second)
}

func TestUDPTransferNoDataIsDistinguishable(t *testing.T) {
	sink, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer sink.Close()

	rec, err := UDPTransfer{
		Addr:     sink.LocalAddr().(*net.UDPAddr),
		FileSize: 4096,
		Timeout:  200 * time.Millisecond,
	}.Run(context.Background())
	require.NoError(t, err)
	require.True(t, rec.NoData)
	require.Equal(t, uint64(0), rec.SegmentsReceived)
}

func TestRunRoundJoinsAllTransfers(t *testing.T) {
	tcpAddr := fakeTCPServer(t)
	udpAddr := fakeUDPServer(t, false, 0)

	host, portText, err := net.SplitHostPort(tcpAddr)
	require.NoError(t, err)
	tcpPort, err := strconv.Atoi(portText)
	require.NoError(t, err)

	stats := RunRound(context.Background(), RoundParams{
		ServerIP:    net.ParseIP(host),
		Offer:       wire.Offer{UDPPort: uint16(udpAddr.Port), TCPPort: uint16(tcpPort)},
		FileSize:    10_000,
		TCPConns:    2,
		UDPConns:    1,
		DialTimeout: 2 * time.Second,
		TCPTimeout:  2 * time.Second,
		UDPTimeout:  time.Second,
	})

	require.Len(t, stats.TCPDurations, 2)
	require.Len(t, stats.UDPDurations, 1)
}
