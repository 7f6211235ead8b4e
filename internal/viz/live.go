package viz

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/massfeed/internal/recipe"
	"github.com/san-kum/massfeed/internal/runner"
)

const historyCapacity = 120

// StepMsg carries the outcome of one runner tick back to the model.
type StepMsg struct {
	Record  runner.TickRecord
	Stage   recipe.View
	Active  bool
	Started bool
	Done    bool
	Err     error
}

// FrameMsg paces the next tick.
type FrameMsg time.Time

// Model steps a Runner from bubbletea commands and renders the stage table,
// stage progress and mass and rate history. The runner is only touched from
// one command at a time.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    *runner.Runner
	name   string
	specs  []recipe.StageSpec
	frame  time.Duration

	theme    Theme
	styles   styles
	spinner  spinner.Model
	progress progress.Model
	stages   table.Model

	last       runner.TickRecord
	stage      recipe.View
	active     bool
	mass, rate []float64

	started  bool
	inflight bool
	paused   bool
	done     bool
	quitting bool
	err      error
}

// NewModel builds a live view of run. frame is the pause between ticks; with
// a wall clock runner it can be zero since the runner waits out each tick.
func NewModel(ctx context.Context, run *runner.Runner, frame time.Duration) Model {
	ctx, cancel := context.WithCancel(ctx)
	prog := run.Program()

	s := spinner.New()
	s.Spinner = spinner.Dot

	columns := []table.Column{
		{Title: "#", Width: 3},
		{Title: "Feed", Width: 8},
		{Title: "Start", Width: 18},
		{Title: "Stop", Width: 18},
		{Title: "Status", Width: 8},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(min(prog.Len(), 8)+2),
	)

	m := Model{
		ctx:      ctx,
		cancel:   cancel,
		run:      run,
		name:     prog.Name(),
		specs:    prog.Recipe().Ordered(),
		frame:    frame,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		stages:   t,
		mass:     make([]float64, 0, historyCapacity),
		rate:     make([]float64, 0, historyCapacity),
		inflight: true, // Init issues the first step
	}
	m.setTheme(ThemePlant)
	m.refreshStages()
	return m
}

func (m *Model) setTheme(t Theme) {
	m.theme = t
	m.styles = newStyles(t)
	m.spinner.Style = lipgloss.NewStyle().Foreground(t.Accent)
	ts := table.DefaultStyles()
	ts.Header = ts.Header.Foreground(t.Primary).Bold(true)
	ts.Selected = ts.Selected.Foreground(t.Accent).Bold(true)
	m.stages.SetStyles(ts)
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.step())
}

// step runs one tick off the UI goroutine. The first call starts the run.
func (m Model) step() tea.Cmd {
	ctx, run, started := m.ctx, m.run, m.started
	return func() tea.Msg {
		msg := StepMsg{Started: true}
		if !started {
			msg.Err = run.Start(ctx)
		} else {
			msg.Done, msg.Err = run.Tick(ctx)
		}
		if trace := run.Trace(); len(trace) > 0 {
			msg.Record = trace[len(trace)-1]
		}
		msg.Stage, msg.Active = run.Current()
		return msg
	}
}

func (m Model) next() tea.Cmd {
	if m.frame <= 0 {
		return m.step()
	}
	return tea.Tick(m.frame, func(t time.Time) tea.Msg { return FrameMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.cancel()
			if !m.inflight {
				return m, m.shutdown()
			}
		case " ":
			if m.done || m.err != nil {
				break
			}
			m.paused = !m.paused
			if !m.paused && !m.inflight {
				m.inflight = true
				return m, m.step()
			}
		case "t":
			m.setTheme(nextTheme(m.theme))
		case "+", "=":
			m.frame /= 2
		case "-", "_":
			m.frame = max(2*m.frame, 10*time.Millisecond)
		}

	case StepMsg:
		m.inflight = false
		m.started = m.started || msg.Started
		m.apply(msg)
		if m.quitting || m.done || m.err != nil {
			if m.quitting {
				return m, m.shutdown()
			}
			if err := m.run.Stop(); err != nil {
				m.err = errors.Join(m.err, err)
			}
			return m, nil
		}
		if !m.paused {
			m.inflight = m.frame <= 0
			return m, m.next()
		}

	case FrameMsg:
		if !m.paused && !m.inflight && !m.done && m.err == nil && !m.quitting {
			m.inflight = true
			return m, m.step()
		}

	case tea.WindowSizeMsg:
		m.progress.Width = max(10, min(60, msg.Width/2))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(msg StepMsg) {
	if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
		m.err = msg.Err
	}
	m.done = msg.Done
	if msg.Active {
		m.stage, m.active = msg.Stage, true
	}
	if msg.Record.Time.IsZero() {
		m.refreshStages()
		return
	}
	m.last = msg.Record
	m.mass = appendCapped(m.mass, msg.Record.Mass)
	m.rate = appendCapped(m.rate, msg.Record.PumpRate)
	m.refreshStages()
}

func (m Model) shutdown() tea.Cmd {
	run := m.run
	return tea.Sequence(func() tea.Msg {
		run.Stop()
		return nil
	}, tea.Quit)
}

func appendCapped(s []float64, v float64) []float64 {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

func (m *Model) refreshStages() {
	rows := make([]table.Row, len(m.specs))
	for i, spec := range m.specs {
		n := i + 1
		status := "pending"
		switch {
		case m.done || (m.active && n < m.stage.Number):
			status = "done"
		case m.active && n == m.stage.Number:
			status = "active"
		}
		rows[i] = table.Row{strconv.Itoa(n), spec.FeedType.String(), startText(spec), stopText(spec), status}
	}
	m.stages.SetRows(rows)
	if m.active {
		m.stages.SetCursor(m.stage.Number - 1)
	}
}

func startText(s recipe.StageSpec) string {
	switch s.FeedType {
	case recipe.Timed:
		return fmt.Sprintf("%.2f mL/min", s.Start.Rate)
	case recipe.Linear:
		return fmt.Sprintf("%+.2f mL/min²", s.Start.IncRate)
	}
	return "current rate"
}

func stopText(s recipe.StageSpec) string {
	switch s.FeedType.StopType() {
	case recipe.StopMass:
		return fmt.Sprintf("%.2f g fed", s.Stop.StopValue)
	case recipe.StopTime:
		return fmt.Sprintf("%.2f min", s.Stop.StopValue)
	case recipe.StopRate:
		return fmt.Sprintf("%.2f mL/min", s.Stop.StopValue)
	}
	return "-"
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.failed.Render("ABORTED")
	case m.done:
		return m.styles.ok.Render("COMPLETE")
	case m.paused:
		return m.styles.paused.Render("PAUSED")
	case !m.started:
		return m.spinner.View() + " PRIMING"
	}
	return m.spinner.View() + m.styles.ok.Render(" FEEDING")
}

func (m Model) View() string {
	st := m.styles
	var s strings.Builder

	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")
	s.WriteString(m.status() + "\n\n")
	s.WriteString(m.stages.View() + "\n\n")

	if m.active {
		label := fmt.Sprintf("Stage %d %s", m.stage.Number, m.stage.FeedType)
		s.WriteString(st.label.Render(label) + "\n")
		pct := 1.0
		if !m.done {
			pct = StageProgress(m.stage, m.last)
		}
		s.WriteString(m.progress.ViewAs(pct) + "\n")
		s.WriteString(st.label.Render("Stop") + st.value.Render(m.stage.Stop.String()) + "\n\n")
	}

	s.WriteString(st.label.Render("Elapsed") + st.value.Render(fmt.Sprintf("%.0fs", m.last.Elapsed)) + "\n")
	s.WriteString(st.label.Render("Scale") + st.value.Render(fmt.Sprintf("%.2f g", m.last.Mass)) + "\n")
	s.WriteString(st.label.Render("Target") + st.value.Render(fmt.Sprintf("%.4f g/s", m.last.Target)) + "\n")
	s.WriteString(st.label.Render("Pump") + st.value.Render(fmt.Sprintf("%.4f g/s", m.last.PumpRate)) + "\n")
	if m.last.HasMeasured {
		s.WriteString(st.label.Render("Measured") + st.value.Render(fmt.Sprintf("%.4f g/s", m.last.Measured)) + "\n")
	}
	s.WriteString(st.label.Render("Pressure") + st.value.Render(fmt.Sprintf("%.2f atm", m.last.Pressure)) + "\n")
	if m.last.LimitHit {
		s.WriteString(st.paused.Render("rate limited") + "\n")
	}

	if len(m.mass) > 1 {
		chart := asciigraph.Plot(m.mass, asciigraph.Height(6), asciigraph.Width(50), asciigraph.Caption("Scale (g)"))
		s.WriteString(st.graph.Render(chart) + "\n")
		chart = asciigraph.Plot(m.rate, asciigraph.Height(4), asciigraph.Width(50), asciigraph.Caption("Pump (g/s)"))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	if m.err != nil {
		s.WriteString(st.failed.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("SP:Pause +/-:Speed T:Theme Q:Quit"))

	return st.panel.Render(s.String())
}

// Err is the error that aborted the run, if any.
func (m Model) Err() error { return m.err }

// Done reports whether the recipe ran to completion.
func (m Model) Done() bool { return m.done }
