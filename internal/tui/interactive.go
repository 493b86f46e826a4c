package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/ldpcsim/internal/ldpc"
	"github.com/san-kum/ldpcsim/internal/sim"
	"github.com/san-kum/ldpcsim/internal/viz"
)

// Runner executes one run. *sim.Session satisfies it.
type Runner interface {
	Run(ctx context.Context, p ldpc.RunParams) (*sim.Result, error)
}

const historyLen = 60

type field int

const (
	fieldInjected field = iota
	fieldIterations
	fieldSeed
	numFields
)

var fieldNames = [numFields]string{"injected errors", "bp iterations", "seed"}

type runMsg struct {
	result *sim.Result
	err    error
}

type explorer struct {
	ctx    context.Context
	runner Runner
	title  string

	params  ldpc.RunParams
	cursor  field
	running bool

	last    *sim.Result
	history []float64
	err     error
	runs    int
}

func newExplorer(ctx context.Context, runner Runner, title string, params ldpc.RunParams) explorer {
	return explorer{ctx: ctx, runner: runner, title: title, params: params}
}

func (m explorer) Init() tea.Cmd { return nil }

func (m explorer) run() tea.Cmd {
	ctx, runner, p := m.ctx, m.runner, m.params
	return func() tea.Msg {
		r, err := runner.Run(ctx, p)
		return runMsg{result: r, err: err}
	}
}

func (m explorer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case runMsg:
		m.running = false
		m.err = msg.err
		if msg.err == nil {
			m.runs++
			m.last = msg.result
			m.history = append(m.history, float64(msg.result.BitErrorCount))
			if len(m.history) > historyLen {
				m.history = m.history[1:]
			}
		}
	}
	return m, nil
}

func (m explorer) handleKey(msg tea.KeyMsg) (explorer, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < numFields-1 {
			m.cursor++
		}
	case "left", "h", "-":
		m.adjust(-1)
	case "right", "l", "+", "=":
		m.adjust(1)
	case "n":
		m.params.Seed++
		fallthrough
	case "enter", " ":
		if m.running {
			return m, nil
		}
		m.running = true
		return m, m.run()
	}
	return m, nil
}

func (m *explorer) adjust(delta int) {
	switch m.cursor {
	case fieldInjected:
		m.params.InjectedErrors = max(0, m.params.InjectedErrors+delta)
	case fieldIterations:
		m.params.BPIterations = max(0, m.params.BPIterations+delta)
	case fieldSeed:
		if delta < 0 && m.params.Seed == 0 {
			return
		}
		m.params.Seed = uint64(int64(m.params.Seed) + int64(delta))
	}
}

func (m explorer) value(f field) string {
	switch f {
	case fieldInjected:
		return fmt.Sprint(m.params.InjectedErrors)
	case fieldIterations:
		return fmt.Sprint(m.params.BPIterations)
	}
	return fmt.Sprint(m.params.Seed)
}

func (m explorer) View() string {
	var b strings.Builder
	b.WriteString(viz.Title().Render(m.title) + "\n\n")

	for f := field(0); f < numFields; f++ {
		cursor := "  "
		label := viz.MetricLabel()
		if f == m.cursor {
			cursor = "▸ "
			label = viz.MetricValue()
		}
		b.WriteString(fmt.Sprintf("%s%-16s %s\n", cursor, label.Render(fieldNames[f]), m.value(f)))
	}
	b.WriteString("\n")

	switch {
	case m.running:
		b.WriteString("  running...\n")
	case m.err != nil:
		b.WriteString("  " + viz.Status(1).Render("error: "+m.err.Error()) + "\n")
	case m.last != nil:
		b.WriteString(fmt.Sprintf("  residual errors %s  injected %d  %s\n",
			viz.Status(m.last.BitErrorCount).Render(fmt.Sprint(m.last.BitErrorCount)),
			m.last.Params.InjectedErrors,
			viz.Subtle().Render(m.last.Elapsed.Round(time.Microsecond).String())))
	default:
		b.WriteString("  " + viz.Subtle().Render("enter to run") + "\n")
	}

	b.WriteString(fmt.Sprintf("\n  %s %s  %s\n",
		viz.MetricLabel().Render("history"),
		viz.SparklineChart(m.history, 40),
		viz.Subtle().Render(fmt.Sprintf("%d runs", m.runs))))
	b.WriteString("\n  " + viz.Subtle().Render("↑/↓ select  ←/→ adjust  enter run  n next seed  q quit") + "\n")
	return b.String()
}

// RunInteractive opens the single-run explorer on runner.
func RunInteractive(ctx context.Context, runner Runner, title string, params ldpc.RunParams) error {
	_, err := tea.NewProgram(newExplorer(ctx, runner, title, params)).Run()
	return err
}
