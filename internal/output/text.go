package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/vburojevic/dbgl/internal/domain"
)

// Color scheme
const (
	ColorPrimary = "6" // Cyan
	ColorSuccess = "2" // Green
	ColorWarning = "3" // Yellow
	ColorError   = "1" // Red
	ColorMuted   = "8" // Dark gray
)

var (
	HeaderStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorPrimary))
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorSuccess))
	WarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWarning))
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorError))
	MutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorMuted))
)

// TextWriter renders human-readable output
type TextWriter struct {
	w io.Writer
}

// NewTextWriter creates a new text writer
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// WriteAttach prints the endpoint and the attach configuration
func (t *TextWriter) WriteAttach(out *AttachOutput) error {
	verb := "Debug session ready"
	if out.Reattached {
		verb = "Reattached to running debug session"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", SuccessStyle.Render("✓"), HeaderStyle.Render(verb))
	fmt.Fprintf(&b, "  endpoint:   %s:%d\n", out.Config.Host, out.Config.Port)
	fmt.Fprintf(&b, "  session:    %s\n", out.SessionID)
	if out.Workspace != "" {
		fmt.Fprintf(&b, "  workspace:  %s\n", out.Workspace)
	}
	if out.PID > 0 {
		fmt.Fprintf(&b, "  pid:        %d\n", out.PID)
	}
	if out.Tmux != "" {
		fmt.Fprintf(&b, "  tmux:       %s\n", out.Tmux)
	}
	for _, m := range out.Config.PathMappings {
		fmt.Fprintf(&b, "  mapping:    %s -> %s\n", m.LocalRoot, m.RemoteRoot)
	}
	if len(out.Config.ExtraFlags) > 0 {
		fmt.Fprintf(&b, "  flags:      %s\n", strings.Join(out.Config.ExtraFlags, ", "))
	}
	_, err := io.WriteString(t.w, b.String())
	return err
}

// WriteState prints a launcher transition
func (t *TextWriter) WriteState(d domain.SessionDebug) error {
	line := MutedStyle.Render(fmt.Sprintf("[%s -> %s]", d.PrevState, d.State))
	if d.Port > 0 {
		line += fmt.Sprintf(" port=%d", d.Port)
	}
	if d.Reason != "" {
		line += " " + d.Reason
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}

// WriteProbe prints a probe result
func (t *TextWriter) WriteProbe(host string, port int, reachable bool, waited time.Duration) error {
	status := ErrorStyle.Render("unreachable")
	if reachable {
		status = SuccessStyle.Render("reachable")
	}
	_, err := fmt.Fprintf(t.w, "%s:%d %s (%s)\n", host, port, status, waited.Round(time.Millisecond))
	return err
}

// WriteInfo prints a status line
func (t *TextWriter) WriteInfo(message string) error {
	_, err := fmt.Fprintln(t.w, message)
	return err
}

// WriteWarning prints a highlighted warning
func (t *TextWriter) WriteWarning(message string) error {
	_, err := fmt.Fprintf(t.w, "%s %s\n", WarningStyle.Render("Warning:"), message)
	return err
}

// WriteSessionEnd prints that a session went away
func (t *TextWriter) WriteSessionEnd(s *domain.Session, reason string) error {
	_, err := fmt.Fprintf(t.w, "%s debug session on port %d ended (%s)\n", WarningStyle.Render("●"), s.DebugPort, reason)
	return err
}

// WriteError prints a coded error with optional hint
func (t *TextWriter) WriteError(code, message string, hint ...string) error {
	line := fmt.Sprintf("%s: %s", ErrorStyle.Render("Error ["+code+"]"), message)
	if len(hint) > 0 && hint[0] != "" {
		line += fmt.Sprintf(" (hint: %s)", hint[0])
	}
	_, err := fmt.Fprintln(t.w, line)
	return err
}
