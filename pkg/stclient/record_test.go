package stclient

import (
	"testing"
	"time"
)

func TestSpeedComputedForPositiveDuration(t *testing.T) {
	rec := Record{
		Proto:          ProtoTCP,
		Duration:       2 * time.Second,
		BytesRequested: 1 << 20,
		BytesReceived:  1 << 20,
	}
	speed, ok := rec.Speed()
	if !ok {
		t.Fatal("expected a defined speed")
	}
	want := float64(1<<20) * 8 / 2
	if speed != want {
		t.Fatalf("speed = %f, want %f", speed, want)
	}
}

func TestSpeedUndefinedForZeroDuration(t *testing.T) {
	rec := Record{Proto: ProtoTCP, BytesReceived: 1 << 20}
	if _, ok := rec.Speed(); ok {
		t.Fatal("zero duration must not produce a speed")
	}
	rec.Duration = -time.Millisecond
	if _, ok := rec.Speed(); ok {
		t.Fatal("negative duration must not produce a speed")
	}
}

func TestLossRate(t *testing.T) {
	cases := []struct {
		name     string
		received uint64
		total    uint64
		want     float64
	}{
		{"zero total has nothing to lose", 0, 0, 0},
		{"all received", 10, 10, 0},
		{"half lost", 5, 10, 0.5},
		{"all lost", 0, 4, 1},
	}
	for _, tc := range cases {
		rec := Record{SegmentsReceived: tc.received, SegmentsTotal: tc.total}
		if got := rec.LossRate(); got != tc.want {
			t.Errorf("%s: loss rate %f, want %f", tc.name, got, tc.want)
		}
	}
}

func TestStatsAggregation(t *testing.T) {
	stats := NewStats(1 << 20)
	stats.Add(Record{Proto: ProtoTCP, Duration: time.Second})
	stats.Add(Record{Proto: ProtoTCP, Duration: 3 * time.Second})
	stats.Add(Record{Proto: ProtoUDP, Duration: 2 * time.Second, SegmentsReceived: 900, SegmentsTotal: 1024})
	stats.Add(Record{Proto: ProtoUDP, Duration: 2 * time.Second, SegmentsReceived: 1024, SegmentsTotal: 1024})

	if len(stats.TCPDurations) != 2 || len(stats.UDPDurations) != 2 {
		t.Fatalf("unexpected record counts: tcp=%d udp=%d", len(stats.TCPDurations), len(stats.UDPDurations))
	}

	meanTCP, ok := stats.MeanTCP()
	if !ok || meanTCP != 2*time.Second {
		t.Fatalf("mean tcp = %v, want 2s", meanTCP)
	}
	speed, ok := stats.MeanTCPSpeed()
	if !ok || speed != float64(1<<20)*8/2 {
		t.Fatalf("mean tcp speed = %f", speed)
	}

	loss, ok := stats.UDPLossRate()
	if !ok {
		t.Fatal("expected a udp loss rate")
	}
	want := float64(124) / float64(2048)
	if loss != want {
		t.Fatalf("loss rate = %f, want %f", loss, want)
	}
}

func TestStatsWithNoRecords(t *testing.T) {
	stats := NewStats(0)
	if _, ok := stats.MeanTCP(); ok {
		t.Fatal("mean over no tcp records must not exist")
	}
	if _, ok := stats.MeanUDP(); ok {
		t.Fatal("mean over no udp records must not exist")
	}
	if _, ok := stats.UDPLossRate(); ok {
		t.Fatal("loss rate over no segments must not exist")
	}
}

func TestStatsCountsNoDataTransfers(t *testing.T) {
	stats := NewStats(1024)
	stats.Add(Record{Proto: ProtoUDP, NoData: true})
	if stats.NoDataTransfers != 1 {
		t.Fatalf("no-data transfers = %d, want 1", stats.NoDataTransfers)
	}
}
