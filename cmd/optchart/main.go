// optchart renders an assembled optical-telemetry series to PNG charts: one
// power chart (TX/RX dBm) and one temperature chart. Input is either the
// JSON written by `optelem -json`, or a direct fetch from the backend when
// -api/-device are given.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/opsdash/optelem/src/aggregate"
	"github.com/opsdash/optelem/src/config"
	"github.com/opsdash/optelem/src/source"
	"github.com/opsdash/optelem/src/telemetry"
)

func main() {
	inPath := flag.String("in", "", "Series JSON produced by 'optelem -json' ('-' for stdin)")
	cfgPath := flag.String("config", "", "Path to optelem.yaml")
	apiURL := flag.String("api", "", "Backend base URL (fetch mode, used when -in is empty)")
	device := flag.String("device", "", "Device identifier (fetch mode)")
	ifIndex := flag.Int("ifindex", -1, "Interface index (fetch mode)")
	hours := flag.Int("hours", 24, "Lookback window in hours (fetch mode)")
	granFlag := flag.String("granularity", "minute", "Bucket width (minute|hour|day, fetch mode)")
	outDir := flag.String("out", "", "Output directory for PNGs (overrides config)")
	width := flag.Int("width", 0, "Chart width in pixels (overrides config)")
	height := flag.Int("height", 0, "Chart height in pixels (overrides config)")
	caption := flag.String("caption", "", "Optional caption stamped onto each chart")
	logLevel := flag.String("log-level", "", "Log level (debug|info|warn|error)")
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
	if *outDir == "" {
		*outDir = cfg.Chart.OutDir
	}
	if *width <= 0 {
		*width = cfg.Chart.Width
	}
	if *height <= 0 {
		*height = cfg.Chart.Height
	}

	var series aggregate.TimeSeries
	if *inPath != "" {
		series, err = readSeriesJSON(*inPath)
	} else {
		series, err = fetchSeries(cfg, *apiURL, *device, *ifIndex, *hours, *granFlag)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	if aggregate.Density(len(series.Buckets)) == aggregate.DensityNone {
		fmt.Println("no buckets to chart")
		return
	}

	wrote, err := writeCharts(series, *outDir, *width, *height, *caption)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	for _, p := range wrote {
		fmt.Printf("wrote %s\n", p)
	}
}

func readSeriesJSON(path string) (aggregate.TimeSeries, error) {
	var series aggregate.TimeSeries
	var in *os.File
	if path == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return series, fmt.Errorf("open series: %w", err)
		}
		defer f.Close()
		in = f
	}
	if err := json.NewDecoder(in).Decode(&series); err != nil {
		return series, fmt.Errorf("decode series: %w", err)
	}
	return series, nil
}

func fetchSeries(cfg *config.Config, apiURL, device string, ifIndex, hours int, granFlag string) (aggregate.TimeSeries, error) {
	var zero aggregate.TimeSeries
	if apiURL == "" {
		apiURL = cfg.API.BaseURL
	}
	if device == "" {
		device = cfg.Device.Name
	}
	if ifIndex < 0 {
		ifIndex = cfg.Device.IfIndex
	}
	if device == "" {
		return zero, fmt.Errorf("no input: pass -in, or -device for fetch mode")
	}
	sel := telemetry.RangeSelection{Hours: hours}
	if !sel.Valid() {
		return zero, fmt.Errorf("invalid -hours %d", hours)
	}
	gran, err := telemetry.ParseGranularity(granFlag)
	if err != nil {
		return zero, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.API.TimeoutSeconds)*time.Second)
	defer cancel()
	readings, err := source.NewHTTPSource(apiURL).Fetch(ctx, device, ifIndex, sel.Hours)
	if err != nil {
		return zero, err
	}
	return aggregate.AssembleSeries(readings, gran), nil
}

// writeCharts renders the power and temperature charts that have data and
// returns the paths written.
func writeCharts(series aggregate.TimeSeries, outDir string, width, height int, caption string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}
	var wrote []string
	if series.HasData[telemetry.ChannelTxPower] || series.HasData[telemetry.ChannelRxPower] {
		p := filepath.Join(outDir, "optical_power.png")
		if err := renderToFile(powerChart(series, width, height), caption, p); err != nil {
			return wrote, fmt.Errorf("power chart: %w", err)
		}
		wrote = append(wrote, p)
	}
	if series.HasData[telemetry.ChannelTemperature] {
		p := filepath.Join(outDir, "temperature.png")
		if err := renderToFile(temperatureChart(series, width, height), caption, p); err != nil {
			return wrote, fmt.Errorf("temperature chart: %w", err)
		}
		wrote = append(wrote, p)
	}
	return wrote, nil
}
