// Package aggregate converts irregular, timestamped transceiver readings into
// fixed-granularity High/Low/Close buckets ready for charting.
//
// The whole pipeline (Bucketize -> Summarize -> AssembleSeries) is a pure
// function of its inputs: it never mutates the caller's reading slice, holds
// no state between calls, and identical inputs always produce an identical
// TimeSeries.
package aggregate

import (
	"sort"
	"time"

	"github.com/opsdash/optelem/src/telemetry"
)

// ChannelStats is the High/Low/Close summary for one channel within one
// bucket. When SampleCount is zero the three values are meaningless and the
// stats are omitted from bucket output entirely. When SampleCount > 0,
// High >= Low always holds and Close is the value of the chronologically
// latest contributing sample (which need not be extremal).
type ChannelStats struct {
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	SampleCount int     `json:"sample_count"`
}

// Bucket is one fixed-width time window of summarized readings. Channels
// with no samples in the window carry no entry in Channels.
type Bucket struct {
	Start    time.Time                          `json:"bucket_start"`
	Channels map[telemetry.Channel]ChannelStats `json:"channels"`
}

// ChannelSeries carries the chart-ready parallel arrays for one channel.
// Only buckets where the channel actually has samples contribute a point, so
// the four slices are always the same length but may be shorter than the
// bucket list.
type ChannelSeries struct {
	Channel    telemetry.Channel `json:"channel"`
	Timestamps []time.Time       `json:"timestamps"`
	High       []float64         `json:"high"`
	Low        []float64         `json:"low"`
	Close      []float64         `json:"close"`
}

// TimeSeries is the assembled result handed to the rendering layer: buckets
// sorted ascending by start time, per-channel parallel arrays for channels
// that have at least one sample anywhere in the series, and per-channel
// hasData flags. Dropped counts readings rejected as malformed during
// bucketing.
type TimeSeries struct {
	Granularity telemetry.Granularity               `json:"granularity"`
	Buckets     []Bucket                            `json:"buckets"`
	Series      map[telemetry.Channel]ChannelSeries `json:"series"`
	HasData     map[telemetry.Channel]bool          `json:"has_data"`
	Dropped     int                                 `json:"dropped,omitempty"`
}

// floorDiv divides flooring toward negative infinity, so bucket starts are
// correct even for pre-epoch timestamps (Go's integer division truncates
// toward zero).
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// BucketStart floors a timestamp to the start of its bucket for the given
// granularity.
func BucketStart(ts time.Time, g telemetry.Granularity) time.Time {
	width := g.WidthMillis()
	start := floorDiv(ts.UnixMilli(), width) * width
	return time.UnixMilli(start).UTC()
}

// Bucketize partitions readings into fixed-width windows keyed by the bucket
// start in epoch milliseconds. Readings inside one bucket keep their supply
// order. Readings with a zero timestamp are malformed and dropped; the
// second return value counts them. Empty input yields an empty (non-nil)
// mapping.
func Bucketize(readings []telemetry.Reading, g telemetry.Granularity) (map[int64][]telemetry.Reading, int) {
	width := g.WidthMillis()
	buckets := make(map[int64][]telemetry.Reading)
	dropped := 0
	for _, r := range readings {
		if r.Validate() != nil {
			dropped++
			continue
		}
		start := floorDiv(r.Timestamp.UnixMilli(), width) * width
		buckets[start] = append(buckets[start], r)
	}
	return buckets, dropped
}

// Summarize computes per-channel High/Low/Close stats for the readings of a
// single bucket. Values are taken in ascending timestamp order; readings
// sharing a timestamp keep their supply order (stable sort), which fixes
// which value wins as Close. Channels with no non-nil value in the bucket
// get no entry.
func Summarize(readings []telemetry.Reading) map[telemetry.Channel]ChannelStats {
	ordered := make([]telemetry.Reading, len(readings))
	copy(ordered, readings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})
	stats := make(map[telemetry.Channel]ChannelStats, len(telemetry.Channels))
	for _, ch := range telemetry.Channels {
		var cs ChannelStats
		for _, r := range ordered {
			v := r.Value(ch)
			if v == nil {
				continue
			}
			if cs.SampleCount == 0 {
				cs.High, cs.Low = *v, *v
			} else {
				if *v > cs.High {
					cs.High = *v
				}
				if *v < cs.Low {
					cs.Low = *v
				}
			}
			cs.Close = *v
			cs.SampleCount++
		}
		if cs.SampleCount > 0 {
			stats[ch] = cs
		}
	}
	return stats
}

// AssembleSeries runs the full pipeline over one device+interface's raw
// readings: bucketize, summarize each bucket, order buckets ascending and
// build the per-channel parallel arrays. Channels without a single sample
// anywhere are flagged hasData=false and omitted from Series. Zero readings
// produce a TimeSeries with zero buckets, not an error.
func AssembleSeries(readings []telemetry.Reading, g telemetry.Granularity) TimeSeries {
	grouped, dropped := Bucketize(readings, g)
	starts := make([]int64, 0, len(grouped))
	for s := range grouped {
		starts = append(starts, s)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	ts := TimeSeries{
		Granularity: g,
		Buckets:     make([]Bucket, 0, len(starts)),
		Series:      make(map[telemetry.Channel]ChannelSeries),
		HasData:     make(map[telemetry.Channel]bool, len(telemetry.Channels)),
		Dropped:     dropped,
	}
	for _, ch := range telemetry.Channels {
		ts.HasData[ch] = false
	}
	for _, start := range starts {
		b := Bucket{Start: time.UnixMilli(start).UTC(), Channels: Summarize(grouped[start])}
		ts.Buckets = append(ts.Buckets, b)
		for ch, cs := range b.Channels {
			ts.HasData[ch] = true
			s, ok := ts.Series[ch]
			if !ok {
				s = ChannelSeries{Channel: ch}
			}
			s.Timestamps = append(s.Timestamps, b.Start)
			s.High = append(s.High, cs.High)
			s.Low = append(s.Low, cs.Low)
			s.Close = append(s.Close, cs.Close)
			ts.Series[ch] = s
		}
	}
	return ts
}
