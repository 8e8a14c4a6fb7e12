// optreader prints a quick inventory of a series JSON file produced by
// `optelem -json`: bucket count, density tier, window covered and the
// per-channel sample totals. Handy for sanity-checking exports without
// rendering charts.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/opsdash/optelem/src/aggregate"
	"github.com/opsdash/optelem/src/telemetry"
)

func main() {
	var file string
	flag.StringVar(&file, "file", "series.json", "Path to series JSON")
	flag.Parse()

	f, err := os.Open(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	var series aggregate.TimeSeries
	if err := json.NewDecoder(f).Decode(&series); err != nil {
		fmt.Fprintf(os.Stderr, "error: decode %s: %v\n", file, err)
		os.Exit(1)
	}

	fmt.Printf("Granularity: %s\n", series.Granularity)
	fmt.Printf("Buckets: %d (density %s)\n", len(series.Buckets), aggregate.Density(len(series.Buckets)))
	if series.Dropped > 0 {
		fmt.Printf("Dropped malformed readings: %d\n", series.Dropped)
	}
	if len(series.Buckets) > 0 {
		first := series.Buckets[0].Start
		last := series.Buckets[len(series.Buckets)-1].Start
		fmt.Printf("Window: %s .. %s\n", first.Format("2006-01-02 15:04:05"), last.Format("2006-01-02 15:04:05"))
	}
	for _, ch := range telemetry.Channels {
		if !series.HasData[ch] {
			fmt.Printf("%s: no data\n", ch.Label())
			continue
		}
		samples := 0
		for _, b := range series.Buckets {
			if cs, ok := b.Channels[ch]; ok {
				samples += cs.SampleCount
			}
		}
		fmt.Printf("%s: %d buckets, %d samples\n", ch.Label(), len(series.Series[ch].Timestamps), samples)
	}
}
