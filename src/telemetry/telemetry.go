// Package telemetry defines the raw data model for optical transceiver
// monitoring: a Reading (one timestamped sample with up to three optional
// channel values), the Channel enumeration, and the user-selectable
// Granularity and RangeSelection sets exposed to the dashboard.
package telemetry

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSample marks a reading whose timestamp is missing or could not
// be parsed. Such samples are dropped individually; the surrounding pipeline
// keeps processing the rest.
var ErrMalformedSample = errors.New("malformed sample: missing timestamp")

// Channel identifies one of the monitored transceiver measurements.
type Channel string

const (
	ChannelTxPower     Channel = "tx_power"
	ChannelRxPower     Channel = "rx_power"
	ChannelTemperature Channel = "temperature"
)

// Channels lists every channel in presentation order.
var Channels = []Channel{ChannelTxPower, ChannelRxPower, ChannelTemperature}

// Label returns the display name including units.
func (c Channel) Label() string {
	switch c {
	case ChannelTxPower:
		return "TX Power (dBm)"
	case ChannelRxPower:
		return "RX Power (dBm)"
	case ChannelTemperature:
		return "Temperature (°C)"
	}
	return string(c)
}

// Reading is one raw sample as supplied by the backend poller. Any channel
// value may be nil independently of the others. A zero Timestamp means the
// source had no usable measurement_timestamp; the bucketizer rejects such
// readings as ErrMalformedSample.
type Reading struct {
	Timestamp   time.Time
	TxPower     *float64
	RxPower     *float64
	Temperature *float64
}

// Validate reports ErrMalformedSample for readings without a timestamp.
// Channel values are all optional, so timestamp presence is the only
// well-formedness requirement.
func (r Reading) Validate() error {
	if r.Timestamp.IsZero() {
		return ErrMalformedSample
	}
	return nil
}

// Value returns the reading's value for the given channel (nil when absent).
func (r Reading) Value(c Channel) *float64 {
	switch c {
	case ChannelTxPower:
		return r.TxPower
	case ChannelRxPower:
		return r.RxPower
	case ChannelTemperature:
		return r.Temperature
	}
	return nil
}

// Granularity selects the fixed bucket width used to summarize readings.
type Granularity int

const (
	GranularityMinute Granularity = iota
	GranularityHour
	GranularityDay
)

// Granularities lists the selectable granularities in ascending width order.
var Granularities = []Granularity{GranularityMinute, GranularityHour, GranularityDay}

// Width returns the bucket width for this granularity.
func (g Granularity) Width() time.Duration {
	switch g {
	case GranularityHour:
		return time.Hour
	case GranularityDay:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// WidthMillis returns the bucket width in milliseconds (60 000 / 3 600 000 /
// 86 400 000), the unit bucket keys are computed in.
func (g Granularity) WidthMillis() int64 { return g.Width().Milliseconds() }

// String returns the wire/flag spelling (minute|hour|day).
func (g Granularity) String() string {
	switch g {
	case GranularityHour:
		return "hour"
	case GranularityDay:
		return "day"
	}
	return "minute"
}

// Label returns the selector caption used by the dashboard.
func (g Granularity) Label() string {
	switch g {
	case GranularityHour:
		return "Hours"
	case GranularityDay:
		return "Days"
	}
	return "Minutes"
}

// ParseGranularity maps a wire/flag spelling back to a Granularity.
func ParseGranularity(s string) (Granularity, error) {
	switch s {
	case "minute", "minutes":
		return GranularityMinute, nil
	case "hour", "hours":
		return GranularityHour, nil
	case "day", "days":
		return GranularityDay, nil
	}
	return GranularityMinute, fmt.Errorf("unknown granularity %q (want minute|hour|day)", s)
}

// RangeSelection is the user-chosen lookback window, expressed in hours.
type RangeSelection struct {
	Hours int
}

// RangeSelections enumerates the selectable lookback windows in ascending
// order, matching the dashboard's range picker.
var RangeSelections = []RangeSelection{
	{Hours: 1}, {Hours: 6}, {Hours: 24}, {Hours: 168}, {Hours: 720},
	{Hours: 2160}, {Hours: 4320}, {Hours: 8640}, {Hours: 17280},
}

var rangeLabels = map[int]string{
	1:     "1hr",
	6:     "6hr",
	24:    "1d",
	168:   "7d",
	720:   "30d",
	2160:  "90d",
	4320:  "180d",
	8640:  "1yr",
	17280: "2yr",
}

// Label returns the picker caption for this window (e.g. "7d").
func (r RangeSelection) Label() string {
	if l, ok := rangeLabels[r.Hours]; ok {
		return l
	}
	return fmt.Sprintf("%dhr", r.Hours)
}

// Valid reports whether the window is one of the enumerated selections.
func (r RangeSelection) Valid() bool {
	_, ok := rangeLabels[r.Hours]
	return ok
}
