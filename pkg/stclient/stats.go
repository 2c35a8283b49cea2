package stclient

import "time"

// Stats aggregates one round's transfer records. It is only written after
// every task of the round has joined, so it needs no locking, and a fresh
// value is built for each round.
type Stats struct {
	FileSize uint64

	TCPDurations []time.Duration
	UDPDurations []time.Duration

	UDPSegmentsReceived uint64
	UDPSegmentsLost     uint64
	NoDataTransfers     int
}

func NewStats(fileSize uint64) *Stats {
	return &Stats{FileSize: fileSize}
}

func (s *Stats) Add(rec Record) {
	switch rec.Proto {
	case ProtoTCP:
		s.TCPDurations = append(s.TCPDurations, rec.Duration)
	case ProtoUDP:
		s.UDPDurations = append(s.UDPDurations, rec.Duration)
		s.UDPSegmentsReceived += rec.SegmentsReceived
		s.UDPSegmentsLost += rec.SegmentsTotal - rec.SegmentsReceived
		if rec.NoData {
			s.NoDataTransfers++
		}
	}
}

func (s *Stats) MeanTCP() (time.Duration, bool) {
	return meanDuration(s.TCPDurations)
}

func (s *Stats) MeanUDP() (time.Duration, bool) {
	return meanDuration(s.UDPDurations)
}

// MeanTCPSpeed is the round's average TCP throughput in bits per second,
// derived from the mean transfer time. ok is false with no usable samples.
func (s *Stats) MeanTCPSpeed() (float64, bool) {
	mean, ok := s.MeanTCP()
	if !ok || mean <= 0 {
		return 0, false
	}
	return float64(s.FileSize) * 8 / mean.Seconds(), true
}

func (s *Stats) MeanUDPSpeed() (float64, bool) {
	mean, ok := s.MeanUDP()
	if !ok || mean <= 0 {
		return 0, false
	}
	return float64(s.FileSize) * 8 / mean.Seconds(), true
}

// UDPLossRate is the fraction of expected segments that never arrived,
// across every UDP transfer of the round. ok is false when no segments were
// expected at all.
func (s *Stats) UDPLossRate() (float64, bool) {
	total := s.UDPSegmentsReceived + s.UDPSegmentsLost
	if total == 0 {
		return 0, false
	}
	return float64(s.UDPSegmentsLost) / float64(total), true
}

func meanDuration(ds []time.Duration) (time.Duration, bool) {
	if len(ds) == 0 {
		return 0, false
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds)), true
}
