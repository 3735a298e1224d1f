package market

import (
	"bytes"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Chart dimensions in pixels. Requested sizes are clamped to this range.
const (
	defaultChartWidth  = 900
	defaultChartHeight = 400
	minChartSize       = 100
	maxChartSize       = 2000
)

// clampChartSize maps a requested dimension into range; zero or negative
// picks the default.
func clampChartSize(v, def int) int {
	switch {
	case v <= 0:
		return def
	case v < minChartSize:
		return minChartSize
	case v > maxChartSize:
		return maxChartSize
	}
	return v
}

// RenderWindowChart renders a PNG line chart of one close window. The x axis
// is the trading-day index; dates are not shown so the chart gives nothing away.
func RenderWindowChart(closes []float64, width, height int) ([]byte, error) {
	if len(closes) < 2 {
		return nil, fmt.Errorf("need at least 2 data points, got %d", len(closes))
	}
	width = clampChartSize(width, defaultChartWidth)
	height = clampChartSize(height, defaultChartHeight)

	xValues := make([]float64, len(closes))
	for i := range closes {
		xValues[i] = float64(i)
	}

	color := drawing.ColorFromHex("16a34a") // green-600
	if closes[len(closes)-1] < closes[0] {
		color = drawing.ColorFromHex("dc2626") // red-600
	}

	series := chart.ContinuousSeries{
		Name: "Close",
		Style: chart.Style{
			StrokeColor: color,
			StrokeWidth: 2.5,
		},
		XValues: xValues,
		YValues: closes,
	}

	graph := chart.Chart{
		Width:  width,
		Height: height,
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			Style: chart.Hidden(),
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("$%.0f", f)
				}
				return ""
			},
		},
		Series: []chart.Series{series},
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
