package aggregate

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/opsdash/optelem/src/telemetry"
)

// rd builds a reading at the given offset (seconds from epoch) with optional
// channel values; NaN marks an absent channel.
func rd(offsetSec float64, tx, rx, temp float64) telemetry.Reading {
	r := telemetry.Reading{Timestamp: time.UnixMilli(int64(offsetSec * 1000)).UTC()}
	if !math.IsNaN(tx) {
		v := tx
		r.TxPower = &v
	}
	if !math.IsNaN(rx) {
		v := rx
		r.RxPower = &v
	}
	if !math.IsNaN(temp) {
		v := temp
		r.Temperature = &v
	}
	return r
}

var none = math.NaN()

func TestBucketizeMinuteScenario(t *testing.T) {
	// t=0s tx=1, t=30s tx=2, t=90s tx=3 at minute width.
	readings := []telemetry.Reading{
		rd(0, 1, none, none),
		rd(30, 2, none, none),
		rd(90, 3, none, none),
	}
	buckets, dropped := Bucketize(readings, telemetry.GranularityMinute)
	if dropped != 0 {
		t.Fatalf("dropped %d, want 0", dropped)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets got %d", len(buckets))
	}
	if len(buckets[0]) != 2 || len(buckets[60_000]) != 1 {
		t.Fatalf("unexpected bucket membership: %v", buckets)
	}

	s0 := Summarize(buckets[0])[telemetry.ChannelTxPower]
	if s0.High != 2 || s0.Low != 1 || s0.Close != 2 || s0.SampleCount != 2 {
		t.Fatalf("bucket@0 stats: %+v", s0)
	}
	s60 := Summarize(buckets[60_000])[telemetry.ChannelTxPower]
	if s60.High != 3 || s60.Low != 3 || s60.Close != 3 || s60.SampleCount != 1 {
		t.Fatalf("bucket@60 stats: %+v", s60)
	}
}

func TestBucketizeUnorderedInput(t *testing.T) {
	// Supply order must not matter for bucket membership or H/L, and close
	// must follow chronological order, not supply order.
	readings := []telemetry.Reading{
		rd(55, 9, none, none),
		rd(5, 4, none, none),
		rd(30, 1, none, none),
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	if len(ts.Buckets) != 1 {
		t.Fatalf("expected 1 bucket got %d", len(ts.Buckets))
	}
	cs := ts.Buckets[0].Channels[telemetry.ChannelTxPower]
	if cs.High != 9 || cs.Low != 1 || cs.SampleCount != 3 {
		t.Fatalf("stats: %+v", cs)
	}
	if cs.Close != 9 { // t=55s is chronologically last
		t.Fatalf("close should be the latest sample's value, got %v", cs.Close)
	}
}

func TestCloseNotExtremal(t *testing.T) {
	// high >= close is NOT guaranteed; close is just the last value.
	readings := []telemetry.Reading{
		rd(0, 10, none, none),
		rd(10, -3, none, none),
		rd(20, 2, none, none),
	}
	cs := Summarize(readings)[telemetry.ChannelTxPower]
	if cs.High != 10 || cs.Low != -3 || cs.Close != 2 {
		t.Fatalf("stats: %+v", cs)
	}
	if cs.High < cs.Low {
		t.Fatalf("high < low: %+v", cs)
	}
}

func TestEqualTimestampTieBreakIsStable(t *testing.T) {
	// Two samples at the exact same instant: supply order decides close.
	readings := []telemetry.Reading{
		rd(10, 7, none, none),
		rd(10, 3, none, none),
	}
	cs := Summarize(readings)[telemetry.ChannelTxPower]
	if cs.Close != 3 {
		t.Fatalf("close should keep supply order on timestamp ties, got %v", cs.Close)
	}
	// Reversed supply order flips the winner.
	cs = Summarize([]telemetry.Reading{readings[1], readings[0]})[telemetry.ChannelTxPower]
	if cs.Close != 7 {
		t.Fatalf("reversed supply order: close got %v want 7", cs.Close)
	}
}

func TestChannelsIndependent(t *testing.T) {
	// A nil channel on one reading contributes no sample to that channel but
	// full samples to the channels it does carry.
	readings := []telemetry.Reading{
		rd(0, 1, none, 40),
		rd(10, 2, -5, none),
		rd(20, none, -6, 41),
	}
	stats := Summarize(readings)
	tx := stats[telemetry.ChannelTxPower]
	rx := stats[telemetry.ChannelRxPower]
	temp := stats[telemetry.ChannelTemperature]
	if tx.SampleCount != 2 || rx.SampleCount != 2 || temp.SampleCount != 2 {
		t.Fatalf("sample counts: tx=%d rx=%d temp=%d", tx.SampleCount, rx.SampleCount, temp.SampleCount)
	}
	if tx.Close != 2 || rx.Close != -6 || temp.Close != 41 {
		t.Fatalf("closes: tx=%v rx=%v temp=%v", tx.Close, rx.Close, temp.Close)
	}
}

func TestMalformedSamplesDroppedNotFatal(t *testing.T) {
	readings := []telemetry.Reading{
		rd(0, 1, none, none),
		{}, // zero timestamp -> malformed
		rd(30, 2, none, none),
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	if ts.Dropped != 1 {
		t.Fatalf("dropped: got %d want 1", ts.Dropped)
	}
	if len(ts.Buckets) != 1 {
		t.Fatalf("buckets: got %d want 1", len(ts.Buckets))
	}
	if cs := ts.Buckets[0].Channels[telemetry.ChannelTxPower]; cs.SampleCount != 2 {
		t.Fatalf("surviving samples: %+v", cs)
	}
}

func TestEmptyInput(t *testing.T) {
	buckets, dropped := Bucketize(nil, telemetry.GranularityHour)
	if dropped != 0 || len(buckets) != 0 {
		t.Fatalf("empty bucketize: %v dropped=%d", buckets, dropped)
	}
	ts := AssembleSeries(nil, telemetry.GranularityHour)
	if len(ts.Buckets) != 0 || len(ts.Series) != 0 {
		t.Fatalf("empty assemble: %+v", ts)
	}
	for ch, has := range ts.HasData {
		if has {
			t.Fatalf("channel %s should have no data", ch)
		}
	}
	if Density(len(ts.Buckets)) != DensityNone {
		t.Fatalf("density of empty series should be none")
	}
}

func TestAbsentChannelOmittedFromSeries(t *testing.T) {
	// rx is nil everywhere: hasData.rx == false and no rx series, while tx
	// remains fully present.
	readings := []telemetry.Reading{
		rd(0, -1.2, none, none),
		rd(61, -1.4, none, none),
		rd(122, -1.3, none, none),
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	if ts.HasData[telemetry.ChannelRxPower] {
		t.Fatalf("rx should be flagged absent")
	}
	if _, ok := ts.Series[telemetry.ChannelRxPower]; ok {
		t.Fatalf("rx should be omitted from assembled output")
	}
	txs, ok := ts.Series[telemetry.ChannelTxPower]
	if !ok || !ts.HasData[telemetry.ChannelTxPower] {
		t.Fatalf("tx should be present")
	}
	if len(txs.Timestamps) != 3 || len(txs.Close) != 3 {
		t.Fatalf("tx arrays: %+v", txs)
	}
}

func TestSeriesSortedAndStartsUnique(t *testing.T) {
	readings := []telemetry.Reading{
		rd(500, 5, none, none),
		rd(10, 1, none, none),
		rd(70, 2, none, none),
		rd(520, 6, none, none),
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	seen := map[int64]bool{}
	for i, b := range ts.Buckets {
		ms := b.Start.UnixMilli()
		if seen[ms] {
			t.Fatalf("duplicate bucket start %d", ms)
		}
		seen[ms] = true
		if ms%telemetry.GranularityMinute.WidthMillis() != 0 {
			t.Fatalf("bucket start %d not aligned", ms)
		}
		if i > 0 && !ts.Buckets[i-1].Start.Before(b.Start) {
			t.Fatalf("buckets not ascending at %d", i)
		}
	}
}

func TestGapsLeaveNoBuckets(t *testing.T) {
	// Buckets exist only where samples exist; empty windows in between are
	// simply absent, not zero-filled.
	readings := []telemetry.Reading{
		rd(0, 1, none, none),
		rd(600, 2, none, none), // ten minutes later
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	if len(ts.Buckets) != 2 {
		t.Fatalf("expected 2 buckets got %d", len(ts.Buckets))
	}
}

// globalExtremes scans a series for the overall min/max of one channel.
func globalExtremes(ts TimeSeries, ch telemetry.Channel) (lo, hi float64) {
	lo, hi = math.MaxFloat64, -math.MaxFloat64
	for _, b := range ts.Buckets {
		cs, ok := b.Channels[ch]
		if !ok {
			continue
		}
		if cs.Low < lo {
			lo = cs.Low
		}
		if cs.High > hi {
			hi = cs.High
		}
	}
	return lo, hi
}

func TestGranularityReassignmentInvariant(t *testing.T) {
	// Changing granularity moves bucket boundaries but never the global
	// extremes of any channel.
	readings := []telemetry.Reading{
		rd(10, -2.5, -8.1, 38),
		rd(75, -2.9, -7.9, 44),
		rd(3700, -1.1, -9.4, 41),
		rd(90000, -3.3, -6.5, 39.5),
	}
	minSeries := AssembleSeries(readings, telemetry.GranularityMinute)
	daySeries := AssembleSeries(readings, telemetry.GranularityDay)
	if len(minSeries.Buckets) <= len(daySeries.Buckets) {
		t.Fatalf("minute series should have more buckets (%d vs %d)", len(minSeries.Buckets), len(daySeries.Buckets))
	}
	for _, ch := range telemetry.Channels {
		lo1, hi1 := globalExtremes(minSeries, ch)
		lo2, hi2 := globalExtremes(daySeries, ch)
		if lo1 != lo2 || hi1 != hi2 {
			t.Fatalf("%s extremes changed across granularity: (%v,%v) vs (%v,%v)", ch, lo1, hi1, lo2, hi2)
		}
	}
}

func TestHighAtLeastLowEverywhere(t *testing.T) {
	readings := []telemetry.Reading{
		rd(1, -4, -2, 30), rd(2, -6, -1, 35), rd(59, -5, -3, 31),
		rd(61, 0, none, none), rd(62, -10, -2.2, 50),
	}
	ts := AssembleSeries(readings, telemetry.GranularityMinute)
	for _, b := range ts.Buckets {
		for ch, cs := range b.Channels {
			if cs.SampleCount <= 0 {
				t.Fatalf("empty stats should not be present for %s", ch)
			}
			if cs.High < cs.Low {
				t.Fatalf("high < low for %s in bucket %v: %+v", ch, b.Start, cs)
			}
		}
	}
}

func TestAssembleIsPure(t *testing.T) {
	readings := []telemetry.Reading{
		rd(90, 3, -7, none),
		rd(0, 1, none, 40),
		rd(30, 2, -8, 41),
	}
	before := make([]telemetry.Reading, len(readings))
	copy(before, readings)
	a := AssembleSeries(readings, telemetry.GranularityMinute)
	b := AssembleSeries(readings, telemetry.GranularityMinute)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical inputs produced different series")
	}
	if !reflect.DeepEqual(before, readings) {
		t.Fatalf("input slice was mutated")
	}
}

func TestBucketStartPreEpoch(t *testing.T) {
	// Flooring must go toward negative infinity, not toward zero.
	ts := time.UnixMilli(-30_000).UTC() // 30s before epoch
	start := BucketStart(ts, telemetry.GranularityMinute)
	if start.UnixMilli() != -60_000 {
		t.Fatalf("pre-epoch bucket start: got %d want -60000", start.UnixMilli())
	}
}

func TestDensityTiers(t *testing.T) {
	cases := []struct {
		n    int
		want DensityTier
	}{
		{0, DensityNone}, {-1, DensityNone}, {1, DensityLow},
		{60, DensityLow}, {61, DensityNormal}, {5000, DensityNormal},
	}
	for _, c := range cases {
		if got := Density(c.n); got != c.want {
			t.Fatalf("density(%d): got %s want %s", c.n, got, c.want)
		}
	}
}
