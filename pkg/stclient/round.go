package stclient

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hadaraza/Client-Server-HR/internal"
	"github.com/hadaraza/Client-Server-HR/pkg/wire"
)

// RoundParams describes one speed test round against one discovered server.
type RoundParams struct {
	ServerIP net.IP
	Offer    wire.Offer

	FileSize uint64
	TCPConns int
	UDPConns int

	DialTimeout time.Duration
	TCPTimeout  time.Duration
	UDPTimeout  time.Duration
}

// RunRound launches every transfer of the round in its own goroutine, joins
// them all, and only then folds the records into a fresh Stats. Transfer
// failures stay local: the failed task still contributes its best-effort
// record and its siblings never notice.
func RunRound(ctx context.Context, p RoundParams) *Stats {
	roundID := uuid.New().String()
	internal.Info("starting speed test round", internal.Fields{
		internal.FieldRound: roundID,
		internal.FieldAddr:  p.ServerIP.String(),
		"file_size":         p.FileSize,
		"tcp_conns":         p.TCPConns,
		"udp_conns":         p.UDPConns,
	})

	total := p.TCPConns + p.UDPConns
	results := make(chan Record, total)
	var wg sync.WaitGroup

	tcpAddr := fmt.Sprintf("%s:%d", p.ServerIP, p.Offer.TCPPort)
	for i := 0; i < p.TCPConns; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			rec, err := TCPTransfer{
				Addr:        tcpAddr,
				FileSize:    p.FileSize,
				DialTimeout: p.DialTimeout,
				IOTimeout:   p.TCPTimeout,
			}.Run(ctx)
			reportTransfer(roundID, num, rec, err)
			results <- rec
		}(i + 1)
	}

	udpAddr := &net.UDPAddr{IP: p.ServerIP, Port: int(p.Offer.UDPPort)}
	for i := 0; i < p.UDPConns; i++ {
		wg.Add(1)
		go func(num int) {
			defer wg.Done()
			rec, err := UDPTransfer{
				Addr:     udpAddr,
				FileSize: p.FileSize,
				Timeout:  p.UDPTimeout,
			}.Run(ctx)
			reportTransfer(roundID, num, rec, err)
			results <- rec
		}(i + 1)
	}

	wg.Wait()
	close(results)

	stats := NewStats(p.FileSize)
	for rec := range results {
		stats.Add(rec)
	}

	internal.Info("round complete", internal.Fields{
		internal.FieldRound: roundID,
		"tcp_transfers":     len(stats.TCPDurations),
		"udp_transfers":     len(stats.UDPDurations),
	})
	return stats
}

func reportTransfer(roundID string, num int, rec Record, err error) {
	fields := internal.Fields{
		internal.FieldRound:    roundID,
		internal.FieldProto:    string(rec.Proto),
		internal.FieldBytes:    rec.BytesReceived,
		internal.FieldDuration: rec.Duration.Seconds(),
		"transfer":             num,
	}
	if err != nil {
		fields[internal.FieldError] = err.Error()
		internal.Warn("transfer finished with error", fields)
		return
	}

	if speed, ok := rec.Speed(); ok {
		fields["speed_bps"] = fmt.Sprintf("%.2f", speed)
	} else {
		fields["speed_bps"] = "instantaneous"
	}
	if rec.Proto == ProtoUDP {
		if rec.NoData {
			internal.Warn("udp transfer received no data", fields)
			return
		}
		fields["delivered_pct"] = fmt.Sprintf("%.2f", (1-rec.LossRate())*100)
	}
	internal.Info("transfer finished", fields)
}
