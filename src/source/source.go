// Package source talks to the backend that owns raw transceiver readings.
// It defines the SampleSource contract the aggregation pipeline consumes and
// ships two concrete adapters: HTTPSource (REST query) and WSSource
// (WebSocket feed). Readings come back unordered; ordering is the
// pipeline's job, not the source's.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/opsdash/optelem/src/telemetry"
)

// ErrFetchFailed marks a request-level failure (network error, bad status,
// undecodable body). There is no automatic retry; the caller surfaces the
// error and waits for a fresh selection.
var ErrFetchFailed = errors.New("fetch failed")

// SampleSource supplies the raw readings for one device+interface over a
// lookback window of the given number of hours. Implementations must honor
// ctx cancellation; a cancelled fetch returns an error.
type SampleSource interface {
	Fetch(ctx context.Context, device string, ifIndex int, hours int) ([]telemetry.Reading, error)
}

// wireTime accepts the two timestamp encodings the backend has emitted over
// time: RFC3339(Nano) strings and epoch-millisecond numbers. Anything else
// leaves the time zero, which the bucketizer treats as a malformed sample.
type wireTime struct {
	time.Time
}

func (w *wireTime) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			w.Time = t
		}
		return nil
	}
	var ms int64
	if err := json.Unmarshal(b, &ms); err != nil {
		return nil
	}
	w.Time = time.UnixMilli(ms)
	return nil
}

// wireReading is the backend's JSON shape for a single sample. Every channel
// field may be null independently.
type wireReading struct {
	MeasurementTimestamp wireTime `json:"measurement_timestamp"`
	TxPower              *float64 `json:"tx_power"`
	RxPower              *float64 `json:"rx_power"`
	Temperature          *float64 `json:"temperature"`
}

// toReadings converts wire samples to the internal model. Samples without a
// usable timestamp are passed through with a zero Timestamp so the pipeline
// counts them as dropped; the conversion itself never fails.
func toReadings(wire []wireReading) []telemetry.Reading {
	out := make([]telemetry.Reading, 0, len(wire))
	malformed := 0
	for _, w := range wire {
		if w.MeasurementTimestamp.IsZero() {
			malformed++
		}
		out = append(out, telemetry.Reading{
			Timestamp:   w.MeasurementTimestamp.Time,
			TxPower:     w.TxPower,
			RxPower:     w.RxPower,
			Temperature: w.Temperature,
		})
	}
	if malformed > 0 {
		Warnf("%d of %d readings missing measurement_timestamp", malformed, len(wire))
	}
	return out
}
