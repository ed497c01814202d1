// Package chart renders metric series as an SVG line chart.
package chart

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"kpidash/internal/core"
)

var ErrNoSeries = errors.New("no series to plot")

const ContentType = "image/svg+xml"

// Options controls the rendered chart. Empty Metrics plots every column.
type Options struct {
	Title   string
	Width   int
	Height  int
	Metrics []string
}

// DefaultOptions matches the dashboard layout.
func DefaultOptions() Options {
	return Options{Width: 800, Height: 400}
}

// Colors for well-known metrics; others cycle through the palette.
var (
	knownColors = map[string]drawing.Color{
		"sales":    drawing.ColorFromHex("636EFA"),
		"expenses": drawing.ColorFromHex("EF553B"),
		"profit":   drawing.ColorFromHex("00CC96"),
	}
	palette = []drawing.Color{
		drawing.ColorFromHex("AB63FA"),
		drawing.ColorFromHex("FFA15A"),
		drawing.ColorFromHex("19D3F3"),
		drawing.ColorFromHex("FF6692"),
	}
)

// lineStyle draws a line with point markers.
func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    4,
	}
}

// SVG renders the selected metric series of ds against its periods.
func SVG(ds core.Dataset, opts Options) ([]byte, error) {
	if ds.IsEmpty() {
		return nil, core.ErrEmptyDataset
	}
	metrics := opts.Metrics
	if len(metrics) == 0 {
		metrics = ds.Metrics
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		d := DefaultOptions()
		opts.Width, opts.Height = d.Width, d.Height
	}

	periods := ds.Periods()
	xs := make([]float64, len(periods))
	ticks := make([]chart.Tick, len(periods))
	for i, p := range periods {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: p}
	}
	// go-chart needs a non-zero x range.
	if len(xs) == 1 {
		xs = []float64{0, 1}
	}

	series := make([]chart.Series, 0, len(metrics))
	extra := 0
	for _, m := range metrics {
		col, err := ds.Column(m)
		if err != nil {
			return nil, err
		}
		ys := make([]float64, len(col))
		for i, v := range col {
			ys[i] = v.InexactFloat64()
		}
		if len(ys) == 1 {
			ys = []float64{ys[0], ys[0]}
		}
		c, ok := knownColors[strings.ToLower(m)]
		if !ok {
			c = palette[extra%len(palette)]
			extra++
		}
		series = append(series, chart.ContinuousSeries{
			Name:    ds.Metrics[ds.MetricIndex(m)],
			XValues: xs,
			YValues: ys,
			Style:   lineStyle(c),
		})
	}
	if len(series) == 0 {
		return nil, ErrNoSeries
	}

	p := message.NewPrinter(language.English)
	ch := chart.Chart{
		Title:      opts.Title,
		Width:      opts.Width,
		Height:     opts.Height,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			Name:  ds.PeriodLabel,
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return p.Sprintf("%.0f", f)
				}
				return fmt.Sprint(v)
			},
		},
		Series: series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	return buf.Bytes(), nil
}
