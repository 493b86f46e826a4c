package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Secondary)
}

func Subtle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func MetricLabel() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(CurrentTheme.Muted)
}

func MetricValue() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(CurrentTheme.Secondary)
}

// Status styles a residual error count: green when clean, red otherwise.
func Status(bitErrors uint32) lipgloss.Style {
	c := CurrentTheme.Success
	if bitErrors > 0 {
		c = CurrentTheme.Error
	}
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

func Panel(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(CurrentTheme.Muted).
		Width(width).
		Padding(0, 1)
}

func AnimatedSpinner(frame int) string {
	spinners := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	return spinners[frame%len(spinners)]
}

// ProgressBar renders fraction in [0, 1] as a bar of width cells.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	c := CurrentTheme.Error
	switch {
	case fraction >= 1:
		c = CurrentTheme.Success
	case fraction > 0.4:
		c = CurrentTheme.Warning
	}
	return lipgloss.NewStyle().Foreground(c).Render(bar)
}

// SparklineChart renders the most recent width values. Low values are good
// here, so they take the success color.
func SparklineChart(values []float64, width int) string {
	if len(values) == 0 {
		return strings.Repeat("─", width)
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	min, max := values[0], values[0]
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	rng := max - min
	if rng == 0 {
		rng = 1
	}

	high := lipgloss.NewStyle().Foreground(CurrentTheme.Error)
	mid := lipgloss.NewStyle().Foreground(CurrentTheme.Warning)
	low := lipgloss.NewStyle().Foreground(CurrentTheme.Success)

	var b strings.Builder
	for _, v := range values {
		norm := (v - min) / rng
		idx := int(norm * float64(len(chars)-1))
		c := string(chars[idx])
		switch {
		case norm > 0.7:
			b.WriteString(high.Render(c))
		case norm > 0.3:
			b.WriteString(mid.Render(c))
		default:
			b.WriteString(low.Render(c))
		}
	}
	return b.String()
}

func BoxWithTitle(title, content string, width int) string {
	return Title().Render(title) + "\n" + Panel(width).Render(content)
}

func Separator(width int) string {
	mid := width / 2
	if mid < 3 {
		return Subtle().Render(strings.Repeat("─", width))
	}
	left := strings.Repeat("─", mid-3)
	right := strings.Repeat("─", width-mid-3)
	return Subtle().Render(left + " ◆ " + right)
}
