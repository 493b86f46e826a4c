package viz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/ldpcsim/internal/sim"
)

type Metric string

const (
	MetricBER  Metric = "ber"
	MetricFER  Metric = "fer"
	MetricMean Metric = "mean"
)

var ErrNoPoints = errors.New("viz: no sweep points to plot")

func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(s)); m {
	case MetricBER, MetricFER, MetricMean:
		return m, nil
	case "":
		return MetricBER, nil
	}
	return "", fmt.Errorf("unknown metric %q (ber, fer, mean)", s)
}

func (m Metric) caption() string {
	switch m {
	case MetricFER:
		return "frame error rate vs injected errors"
	case MetricMean:
		return "mean residual bit errors vs injected errors"
	}
	return "bit error rate vs injected errors"
}

// Value extracts the metric from a sweep point.
func (m Metric) Value(pt sim.SweepPoint) float64 {
	switch m {
	case MetricFER:
		return pt.FER
	case MetricMean:
		return pt.Mean
	}
	return pt.BER
}

// PlotSweep draws metric over the sweep. Points are spaced evenly along the
// x axis in sweep order; the injected counts are listed under the graph.
func PlotSweep(points []sim.SweepPoint, metric Metric, width, height int) (string, error) {
	if len(points) == 0 {
		return "", ErrNoPoints
	}
	data := make([]float64, len(points))
	injected := make([]string, len(points))
	for i, pt := range points {
		data[i] = metric.Value(pt)
		injected[i] = fmt.Sprint(pt.Injected)
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}

	graph := asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Precision(4),
		asciigraph.Caption(metric.caption()),
	)
	return graph + "\n" + Subtle().Render("injected: "+strings.Join(injected, " ")), nil
}

// PlotRuns draws residual bit errors per run, in run order.
func PlotRuns(results []*sim.Result, width, height int) (string, error) {
	if len(results) == 0 {
		return "", ErrNoPoints
	}
	data := make([]float64, 0, len(results)+1)
	for _, r := range results {
		data = append(data, float64(r.BitErrorCount))
	}
	if len(data) == 1 {
		data = append(data, data[0])
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption("residual bit errors per run"),
	), nil
}

// SweepTable renders one line per point.
func SweepTable(points []sim.SweepPoint) string {
	head := lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Primary)
	cell := lipgloss.NewStyle().Width(10).Align(lipgloss.Right)

	var b strings.Builder
	cols := []string{"injected", "runs", "mean", "stddev", "max", "failures", "BER", "FER"}
	for _, c := range cols {
		b.WriteString(cell.Render(head.Render(c)))
	}
	b.WriteByte('\n')

	for _, pt := range points {
		row := []string{
			fmt.Sprint(pt.Injected),
			fmt.Sprint(pt.Runs),
			fmt.Sprintf("%.3f", pt.Mean),
			fmt.Sprintf("%.3f", pt.StdDev),
			Status(pt.Max).Render(fmt.Sprint(pt.Max)),
			fmt.Sprint(pt.Failures),
			fmt.Sprintf("%.2e", pt.BER),
			fmt.Sprintf("%.3f", pt.FER),
		}
		for _, c := range row {
			b.WriteString(cell.Render(c))
		}
		b.WriteByte('\n')
	}
	return b.String()
}
