package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	png "image/png"
	"os"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/opsdash/optelem/src/aggregate"
	"github.com/opsdash/optelem/src/telemetry"
)

// lineStyle returns a stroked style; sparse series additionally get point
// markers so single readings stay visible.
func lineStyle(col drawing.Color, density aggregate.DensityTier) chart.Style {
	st := chart.Style{StrokeWidth: 1.5, StrokeColor: col}
	if density == aggregate.DensityLow {
		st.DotWidth = 3
		st.DotColor = col
	}
	return st
}

// bandStyle is the thin stroke used for the High/Low envelope lines.
func bandStyle(col drawing.Color) chart.Style {
	return chart.Style{StrokeWidth: 1, StrokeColor: col.WithAlpha(110)}
}

// channelSeries builds the go-chart series for one channel: the Close line
// plus High/Low envelope lines. go-chart rejects single-point series, so a
// lone point is padded with a second X one second later (same Y).
func channelSeries(name string, s aggregate.ChannelSeries, col drawing.Color, density aggregate.DensityTier) []chart.Series {
	times, high, low, closev := s.Timestamps, s.High, s.Low, s.Close
	if len(times) == 1 {
		times = []time.Time{times[0], times[0].Add(time.Second)}
		high = []float64{high[0], high[0]}
		low = []float64{low[0], low[0]}
		closev = []float64{closev[0], closev[0]}
	}
	return []chart.Series{
		chart.TimeSeries{Name: name + " high", XValues: times, YValues: high, Style: bandStyle(col)},
		chart.TimeSeries{Name: name + " low", XValues: times, YValues: low, Style: bandStyle(col)},
		chart.TimeSeries{Name: name, XValues: times, YValues: closev, Style: lineStyle(col, density)},
	}
}

// powerChart assembles the TX/RX power chart for whichever power channels
// have data.
func powerChart(series aggregate.TimeSeries, width, height int) chart.Chart {
	density := aggregate.Density(len(series.Buckets))
	var cs []chart.Series
	if s, ok := series.Series[telemetry.ChannelTxPower]; ok {
		cs = append(cs, channelSeries("TX", s, chart.ColorBlue, density)...)
	}
	if s, ok := series.Series[telemetry.ChannelRxPower]; ok {
		cs = append(cs, channelSeries("RX", s, chart.ColorGreen, density)...)
	}
	ch := chart.Chart{
		Title:      "Optical Power (dBm)",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 48}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04")},
		YAxis:      chart.YAxis{Name: "dBm"},
		Series:     cs,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

// temperatureChart assembles the module temperature chart.
func temperatureChart(series aggregate.TimeSeries, width, height int) chart.Chart {
	density := aggregate.Density(len(series.Buckets))
	var cs []chart.Series
	if s, ok := series.Series[telemetry.ChannelTemperature]; ok {
		cs = append(cs, channelSeries("Temp", s, chart.ColorOrange, density)...)
	}
	ch := chart.Chart{
		Title:      "Module Temperature (°C)",
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 14, Left: 16, Right: 12, Bottom: 48}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04")},
		YAxis:      chart.YAxis{Name: "°C"},
		Series:     cs,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch
}

// renderToFile renders a chart to PNG, stamps the optional caption and
// writes the result.
func renderToFile(ch chart.Chart, caption, path string) error {
	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	out := buf.Bytes()
	if caption != "" {
		img, err := png.Decode(bytes.NewReader(out))
		if err != nil {
			return fmt.Errorf("decode rendered png: %w", err)
		}
		var captioned bytes.Buffer
		if err := png.Encode(&captioned, stampCaption(img, caption)); err != nil {
			return fmt.Errorf("encode captioned png: %w", err)
		}
		out = captioned.Bytes()
	}
	return os.WriteFile(path, out, 0o644)
}

// stampCaption draws a small caption onto the image near the bottom-left,
// shadowed for contrast on varying backgrounds.
func stampCaption(img image.Image, text string) image.Image {
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	face := basicfont.Face7x13
	textCol := image.NewUniform(color.RGBA{R: 40, G: 40, B: 40, A: 255})
	shadowCol := image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 200})
	x := b.Min.X + 8
	y := b.Max.Y - 6
	shadow := &font.Drawer{Dst: rgba, Src: shadowCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x + 1), Y: fixed.I(y + 1)}}
	shadow.DrawString(text)
	txt := &font.Drawer{Dst: rgba, Src: textCol, Face: face, Dot: fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)}}
	txt.DrawString(text)
	return rgba
}
