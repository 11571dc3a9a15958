// Package charts renders PNG charts of a metrics snapshot.
package charts

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"carteira/internal/metrics"
	"carteira/internal/palette"
)

// ErrNoData is returned when the snapshot has nothing to plot.
var ErrNoData = errors.New("no data to chart")

const ContentType = "image/png"

var (
	incomeColor  = drawing.ColorFromHex("28a745")
	expenseColor = drawing.ColorFromHex("dc3545")
)

// MonthlyFlow renders income and account expenses per month as paired bars,
// oldest month first. Credit card spending is not part of the flow.
func MonthlyFlow(snap metrics.Snapshot) ([]byte, error) {
	keys := snap.MonthKeys()
	bars := make([]chart.Value, 0, 2*len(keys))
	var plotted bool
	for _, k := range keys {
		f := snap.MonthlyFlow[k]
		label := monthLabel(k)
		bars = append(bars,
			chart.Value{Label: label + " +", Value: f.Income.Float(), Style: chart.Style{FillColor: incomeColor, StrokeColor: incomeColor}},
			chart.Value{Label: label + " -", Value: f.Expense.Float(), Style: chart.Style{FillColor: expenseColor, StrokeColor: expenseColor}},
		)
		plotted = plotted || !f.Income.IsZero() || !f.Expense.IsZero()
	}
	if !plotted {
		return nil, ErrNoData
	}

	graph := chart.BarChart{
		Title:    "Monthly flow",
		Width:    max(480, 90*len(bars)),
		Height:   400,
		BarWidth: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("R$ %.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}
	return render(graph)
}

// Categories renders the current-month expense breakdown as a donut, each
// slice in its category color.
func Categories(snap metrics.Snapshot) ([]byte, error) {
	entries := snap.ExpensesByValue()
	values := make([]chart.Value, 0, len(entries))
	for _, e := range entries {
		if e.Amount.Cents <= 0 {
			continue
		}
		c := drawing.ColorFromHex(palette.Hex(e.Name))
		values = append(values, chart.Value{
			Label: e.Name,
			Value: e.Amount.Float(),
			Style: chart.Style{FillColor: c, StrokeColor: drawing.ColorWhite},
		})
	}
	if len(values) == 0 {
		return nil, ErrNoData
	}

	graph := chart.DonutChart{
		Title:  "Expenses by category " + monthLabel(snap.Month),
		Width:  512,
		Height: 512,
		Values: values,
	}
	return render(graph)
}

type renderable interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func render(r renderable) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

func monthLabel(key string) string {
	t, err := time.Parse("2006-01", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 06")
}

