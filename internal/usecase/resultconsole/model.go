package resultconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ppesuite/internal/bootstrap/logging"
	"ppesuite/internal/domain/compliance"
	"ppesuite/internal/usecase/correlation"
)

const tickInterval = 200 * time.Millisecond

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Correlator is the part of the correlation service the console drives.
type Correlator interface {
	CorrelateWithProgress(
		ctx context.Context,
		imageKey string,
		budget time.Duration,
		pollInterval time.Duration,
		observe func(correlation.Progress),
	) (compliance.DisplayResult, error)
}

type Options struct {
	ImageKey     string
	Budget       time.Duration
	PollInterval time.Duration
}

// Model waits for one upload's result and then renders it.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	correlator Correlator
	options    Options
	now        func() time.Time

	updates  chan correlation.Progress
	started  time.Time
	frame    int
	progress correlation.Progress
	polled   bool

	done   bool
	result compliance.DisplayResult
	err    error
}

type tickMsg struct{}

type progressMsg struct {
	progress correlation.Progress
}

type doneMsg struct {
	result compliance.DisplayResult
	err    error
}

func NewModel(ctx context.Context, correlator Correlator, options Options) *Model {
	runCtx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:        logging.WithAttrs(runCtx, slog.String("component", "usecase.resultconsole")),
		cancel:     cancel,
		correlator: correlator,
		options:    options,
		now:        time.Now,
		updates:    make(chan correlation.Progress, 8),
	}
}

func (m *Model) Init() tea.Cmd {
	m.started = m.now()
	return tea.Batch(m.correlateCmd(), m.waitProgressCmd(), m.tickCmd())
}

func (m *Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, m.tickCmd()
	case progressMsg:
		m.progress = msg.progress
		m.polled = true
		return m, m.waitProgressCmd()
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.cancel()
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) View() string {
	var builder strings.Builder
	builder.WriteString(titleStyle.Render("PPE compliance check"))
	builder.WriteString("\n")
	builder.WriteString(dimStyle.Render(fmt.Sprintf("image=%s budget=%s interval=%s", m.options.ImageKey, m.options.Budget, m.options.PollInterval)))
	builder.WriteString("\n\n")

	switch {
	case m.done && m.err != nil && m.result.Phase != compliance.PhaseFailed:
		builder.WriteString(errorStyle.Render("Stopped: " + m.err.Error()))
	case m.done:
		builder.WriteString(Render(m.result))
	default:
		elapsed := m.now().Sub(m.started).Truncate(time.Second)
		line := fmt.Sprintf("%s Waiting for analysis... %s", spinnerFrames[m.frame], elapsed)
		if m.polled {
			line += dimStyle.Render(fmt.Sprintf("  poll #%d, %s left", m.progress.Attempt, m.progress.Remaining.Truncate(time.Second)))
		}
		builder.WriteString(line)
	}
	builder.WriteString("\n\n")
	builder.WriteString(dimStyle.Render("q: quit"))
	builder.WriteString("\n")
	return builder.String()
}

// Outcome returns the final result once the model has finished.
func (m *Model) Outcome() (compliance.DisplayResult, bool, error) {
	return m.result, m.done, m.err
}

func (m *Model) correlateCmd() tea.Cmd {
	return func() tea.Msg {
		defer close(m.updates)
		result, err := m.correlator.CorrelateWithProgress(m.ctx, m.options.ImageKey, m.options.Budget, m.options.PollInterval, func(p correlation.Progress) {
			select {
			case m.updates <- p:
			default:
			}
		})
		return doneMsg{result: result, err: err}
	}
}

func (m *Model) waitProgressCmd() tea.Cmd {
	return func() tea.Msg {
		progress, ok := <-m.updates
		if !ok {
			return nil
		}
		return progressMsg{progress: progress}
	}
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}
