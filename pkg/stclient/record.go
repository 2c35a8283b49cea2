package stclient

import "time"

type Proto string

const (
	ProtoTCP Proto = "tcp"
	ProtoUDP Proto = "udp"
)

// Record is the outcome of one transfer. It is produced by the task that ran
// the transfer and handed to the aggregator by value after the round joins.
type Record struct {
	Proto            Proto
	Duration         time.Duration
	BytesRequested   uint64
	BytesReceived    uint64
	SegmentsReceived uint64
	SegmentsTotal    uint64

	// NoData marks a UDP transfer that never saw a single payload datagram,
	// as opposed to a genuine zero-loss (or zero-size) transfer.
	NoData bool
}

// Speed returns the observed throughput in bits per second. ok is false when
// the elapsed time is not positive: the transfer was effectively
// instantaneous and no meaningful rate exists.
func (r Record) Speed() (float64, bool) {
	if r.Duration <= 0 {
		return 0, false
	}
	return float64(r.BytesReceived) * 8 / r.Duration.Seconds(), true
}

// LossRate reports the fraction of segments that never arrived. Transfers
// with zero total segments have nothing to lose.
func (r Record) LossRate() float64 {
	if r.SegmentsTotal == 0 {
		return 0
	}
	lost := r.SegmentsTotal - r.SegmentsReceived
	return float64(lost) / float64(r.SegmentsTotal)
}
