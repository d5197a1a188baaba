package cli

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/output"
)

var progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(output.ColorPrimary))

type progressDoneMsg struct{}

// progressModel shows a spinner until the wrapped work reports done.
// ctrl+c, q or esc cancel the work's context.
type progressModel struct {
	spinner    spinner.Model
	status     string
	cancel     context.CancelFunc
	cancelling bool
	done       bool
}

func newProgressModel(status string, cancel context.CancelFunc) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = progressStyle
	return progressModel{spinner: s, status: status, cancel: cancel}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.cancelling {
				m.cancelling = true
				m.status = "cancelling..."
				m.cancel()
			}
		}
		return m, nil
	case progressDoneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}
	return m.spinner.View() + " " + output.MutedStyle.Render(m.status) + "\n"
}

// withProgress runs fn while a spinner is drawn on stderr. The spinner only
// appears for text output on a terminal; otherwise fn runs directly.
func withProgress[T any](globals *Globals, cancel context.CancelFunc, status string, fn func() (T, error)) (T, error) {
	if !useProgress(globals) {
		return fn()
	}

	type result struct {
		v   T
		err error
	}
	p := tea.NewProgram(newProgressModel(status, cancel), tea.WithOutput(globals.Stderr))
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
		p.Send(progressDoneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		globals.logger().Debug("progress UI stopped", zap.Error(err))
	}
	r := <-ch
	return r.v, r.err
}

func useProgress(globals *Globals) bool {
	return globals.Format == "text" && !globals.Quiet && !globals.Verbose && isTerminal(globals.Stderr)
}
