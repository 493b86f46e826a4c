package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ldpcsim/internal/sim"
	"github.com/san-kum/ldpcsim/internal/viz"
)

// SweepFunc runs a sweep, reporting each finished point through progress.
type SweepFunc func(ctx context.Context, progress func(done, total int, pt sim.SweepPoint)) ([]sim.SweepPoint, error)

type pointMsg struct {
	done, total int
	pt          sim.SweepPoint
}

type sweepDoneMsg struct {
	points []sim.SweepPoint
	err    error
}

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg { return <-events }
}

type sweepModel struct {
	title  string
	total  int
	events <-chan tea.Msg
	cancel context.CancelFunc

	points   []sim.SweepPoint
	done     int
	frame    int
	started  time.Time
	finished bool
	err      error
	width    int
}

func newSweepModel(title string, total int, events <-chan tea.Msg, cancel context.CancelFunc) sweepModel {
	return sweepModel{
		title:   title,
		total:   total,
		events:  events,
		cancel:  cancel,
		started: time.Now(),
		width:   80,
	}
}

func (m sweepModel) Init() tea.Cmd {
	return tea.Batch(waitEvent(m.events), tick())
}

func (m sweepModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			// The sweep stops at the next run boundary and reports back.
			m.cancel()
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case pointMsg:
		m.done = msg.done
		m.total = msg.total
		m.points = append(m.points, msg.pt)
		return m, waitEvent(m.events)
	case sweepDoneMsg:
		m.finished = true
		m.err = msg.err
		if len(msg.points) >= len(m.points) {
			m.points = msg.points
		}
		return m, tea.Quit
	case tickMsg:
		if m.finished {
			return m, nil
		}
		m.frame++
		return m, tick()
	}
	return m, nil
}

func (m sweepModel) View() string {
	var b strings.Builder

	spinner := viz.AnimatedSpinner(m.frame)
	if m.finished {
		spinner = "✓"
		if m.err != nil {
			spinner = "✗"
		}
	}
	b.WriteString(fmt.Sprintf("%s %s\n\n", spinner, viz.Title().Render(m.title)))

	fraction := 0.0
	if m.total > 0 {
		fraction = float64(m.done) / float64(m.total)
	}
	b.WriteString(fmt.Sprintf("  %s %d/%d points  %s\n\n",
		viz.ProgressBar(fraction, 30), m.done, m.total,
		viz.Subtle().Render(time.Since(m.started).Round(time.Millisecond).String())))

	if len(m.points) > 0 {
		b.WriteString(viz.SweepTable(m.points))
		ber := make([]float64, len(m.points))
		for i, pt := range m.points {
			ber[i] = pt.BER
		}
		b.WriteString("\n  " + viz.MetricLabel().Render("BER ") + viz.SparklineChart(ber, 40) + "\n")
	}

	if m.err != nil {
		b.WriteString("\n  " + viz.Status(1).Render(m.err.Error()) + "\n")
	}
	if !m.finished {
		b.WriteString("\n  " + viz.Subtle().Render("q to stop") + "\n")
	}
	return b.String()
}

// RunSweep runs fn under a live progress display and returns what it
// produced. Stopping the display cancels the sweep.
func RunSweep(ctx context.Context, title string, total int, fn SweepFunc) ([]sim.SweepPoint, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan tea.Msg, total+1)
	go func() {
		points, err := fn(ctx, func(done, total int, pt sim.SweepPoint) {
			events <- pointMsg{done: done, total: total, pt: pt}
		})
		events <- sweepDoneMsg{points: points, err: err}
	}()

	final, err := tea.NewProgram(newSweepModel(title, total, events, cancel)).Run()
	if err != nil {
		return nil, err
	}
	m := final.(sweepModel)
	return m.points, m.err
}
