package portfolio

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/aether/internal/models"
)

// ErrNothingToChart is returned when no holding has a positive market value.
var ErrNothingToChart = errors.New("no priced holdings to chart")

var sliceColors = []string{
	"2563eb", // blue-600
	"f59e0b", // amber-500
	"10b981", // emerald-500
	"ef4444", // red-500
	"8b5cf6", // violet-500
	"06b6d4", // cyan-500
	"ec4899", // pink-500
	"84cc16", // lime-500
}

// RenderAllocationChart renders a PNG pie chart of holdings by allocation.
// Only holdings with a positive market value are drawn. Returns raw PNG bytes.
func RenderAllocationChart(holdings []models.Holding) ([]byte, error) {
	values := make([]chart.Value, 0, len(holdings))
	for _, h := range holdings {
		if h.MarketValue <= 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %.1f%%", h.Symbol, h.AllocationPercent),
			Value: h.MarketValue,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(sliceColors[len(values)%len(sliceColors)]),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}

	if len(values) == 0 {
		return nil, ErrNothingToChart
	}

	graph := chart.PieChart{
		Title:  "Allocation",
		Width:  512,
		Height: 512,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
