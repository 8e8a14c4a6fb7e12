// optelem entrypoint.
//
// One-shot mode: fetch the raw optical-power/temperature readings for a
// single device+interface over the selected lookback window, run the
// bucketize -> summarize -> assemble pipeline at the selected granularity and
// print the per-bucket High/Low/Close table plus a per-channel rollup.
// With -json the assembled series is written for downstream tooling
// (cmd/optchart consumes it).
//
// Design notes:
//   - The pipeline itself is pure; everything stateful (endpoint, selection)
//     lives here and in src/control for embedding UIs.
//   - Flags override optelem.yaml/env config, so ad-hoc queries never require
//     editing the config file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/opsdash/optelem/src/aggregate"
	"github.com/opsdash/optelem/src/config"
	"github.com/opsdash/optelem/src/source"
	"github.com/opsdash/optelem/src/telemetry"
)

// rangeChoices renders the allowed -hours values for usage/error text.
func rangeChoices() string {
	parts := make([]string, 0, len(telemetry.RangeSelections))
	for _, r := range telemetry.RangeSelections {
		parts = append(parts, fmt.Sprintf("%d (%s)", r.Hours, r.Label()))
	}
	return strings.Join(parts, ", ")
}

// fmtStat renders one channel's stats cell for the bucket table.
func fmtStat(cs aggregate.ChannelStats, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f/%.2f/%.2f (%d)", cs.High, cs.Low, cs.Close, cs.SampleCount)
}

func main() {
	cfgPath := flag.String("config", "", "Path to optelem.yaml (default: ./optelem.yaml if present)")
	apiURL := flag.String("api", "", "Backend base URL (overrides config)")
	wsURL := flag.String("ws", "", "WebSocket feed URL; when set the feed is used instead of the REST API")
	device := flag.String("device", "", "Device identifier (overrides config)")
	ifIndex := flag.Int("ifindex", -1, "Interface index (overrides config)")
	hours := flag.Int("hours", 24, "Lookback window in hours; one of "+rangeChoices())
	granFlag := flag.String("granularity", "minute", "Bucket width (minute|hour|day)")
	jsonOut := flag.String("json", "", "Write the assembled series as JSON to this path ('-' for stdout)")
	logLevel := flag.String("log-level", "", "Log level (debug|info|warn|error); overrides config")
	timeout := flag.Duration("timeout", 0, "Overall fetch timeout (0 = config value)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel == "" {
		*logLevel = cfg.LogLevel
	}
	source.SetLogLevel(*logLevel)
	if *apiURL == "" {
		*apiURL = cfg.API.BaseURL
	}
	if *wsURL == "" {
		*wsURL = cfg.API.WSURL
	}
	if *device == "" {
		*device = cfg.Device.Name
	}
	if *ifIndex < 0 {
		*ifIndex = cfg.Device.IfIndex
	}
	if *device == "" {
		fmt.Fprintln(os.Stderr, "no device selected: pass -device or set device.name in optelem.yaml")
		os.Exit(2)
	}

	sel := telemetry.RangeSelection{Hours: *hours}
	if !sel.Valid() {
		fmt.Fprintf(os.Stderr, "invalid -hours %d; allowed: %s\n", *hours, rangeChoices())
		os.Exit(2)
	}
	gran, err := telemetry.ParseGranularity(*granFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	var src source.SampleSource
	if *wsURL != "" {
		src = source.NewWSSource(*wsURL)
	} else {
		src = source.NewHTTPSource(*apiURL)
	}

	if *timeout <= 0 {
		*timeout = time.Duration(cfg.API.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	source.Infof("fetching %s if%d, last %s at %s granularity", *device, *ifIndex, sel.Label(), gran)
	readings, err := src.Fetch(ctx, *device, *ifIndex, sel.Hours)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch: %v\n", err)
		os.Exit(1)
	}

	series := aggregate.AssembleSeries(readings, gran)
	if series.Dropped > 0 {
		source.Warnf("dropped %d malformed readings", series.Dropped)
	}
	if len(series.Buckets) == 0 {
		fmt.Printf("no readings for %s if%d in the last %s\n", *device, *ifIndex, sel.Label())
		return
	}

	printSeries(series)

	if *jsonOut != "" {
		if err := writeSeriesJSON(series, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "write json: %v\n", err)
			os.Exit(1)
		}
	}
}

// presentChannels lists the channels that have data, in presentation order.
func presentChannels(series aggregate.TimeSeries) []telemetry.Channel {
	out := make([]telemetry.Channel, 0, len(series.Series))
	for _, ch := range telemetry.Channels {
		if series.HasData[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// printSeries renders the bucket table and per-channel rollup to stdout.
func printSeries(series aggregate.TimeSeries) {
	present := presentChannels(series)
	fmt.Printf("%-20s", "bucket")
	for _, ch := range present {
		fmt.Printf("  %-28s", ch.Label()+" hi/lo/close")
	}
	fmt.Println()
	for _, b := range series.Buckets {
		fmt.Printf("%-20s", b.Start.Format("2006-01-02 15:04:05"))
		for _, ch := range present {
			cs, ok := b.Channels[ch]
			fmt.Printf("  %-28s", fmtStat(cs, ok))
		}
		fmt.Println()
	}

	fmt.Printf("\n%d buckets (density %s)\n", len(series.Buckets), aggregate.Density(len(series.Buckets)))
	for _, ch := range present {
		s := series.Series[ch]
		lo, hi := s.Low[0], s.High[0]
		for i := range s.High {
			if s.Low[i] < lo {
				lo = s.Low[i]
			}
			if s.High[i] > hi {
				hi = s.High[i]
			}
		}
		samples := 0
		for _, b := range series.Buckets {
			if cs, ok := b.Channels[ch]; ok {
				samples += cs.SampleCount
			}
		}
		last := s.Close[len(s.Close)-1]
		fmt.Printf("%-22s min %.2f  max %.2f  last %.2f  (%d samples)\n", ch.Label(), lo, hi, last, samples)
	}
}

func writeSeriesJSON(series aggregate.TimeSeries, path string) error {
	var out *os.File
	if path == "-" {
		out = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(series)
}
