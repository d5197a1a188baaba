package tmux

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GianlucaP106/gotmux/gotmux"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/launcher"
)

// DefaultPollInterval is how often a detached session is checked for exit
const DefaultPollInterval = time.Second

// Runner executes raw tmux commands; *gotmux.Tmux satisfies it
type Runner interface {
	Command(req ...string) (string, error)
}

// Spawner starts targets inside detached tmux sessions so their output can
// be inspected with tmux attach.
type Spawner struct {
	tmux   Runner
	prefix string
	poll   time.Duration
	clock  clock.Clock
	logger *zap.Logger
}

// Option configures a Spawner
type Option func(*Spawner)

// WithPrefix sets the session name prefix
func WithPrefix(p string) Option { return func(s *Spawner) { s.prefix = p } }

// WithPollInterval sets the exit check interval
func WithPollInterval(d time.Duration) Option { return func(s *Spawner) { s.poll = d } }

// WithClock overrides the clock driving exit checks
func WithClock(c clock.Clock) Option { return func(s *Spawner) { s.clock = c } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Spawner) {
		if l != nil {
			s.logger = l
		}
	}
}

// IsTmuxAvailable checks if tmux is installed
func IsTmuxAvailable() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// NewSpawner connects to the default tmux server
func NewSpawner(opts ...Option) (*Spawner, error) {
	t, err := gotmux.DefaultTmux()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tmux: %w", err)
	}
	return NewSpawnerWithRunner(t, opts...), nil
}

// NewSpawnerWithRunner builds a Spawner over an existing runner
func NewSpawnerWithRunner(r Runner, opts ...Option) *Spawner {
	s := &Spawner{
		tmux:   r,
		prefix: "dbgl",
		poll:   DefaultPollInterval,
		clock:  clock.New(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SessionName returns the tmux session used for spec
func (s *Spawner) SessionName(spec launcher.SpawnSpec) string {
	base := strings.Trim(unsafeName.ReplaceAllString(filepath.Base(spec.Executable), "-"), "-")
	if base == "" {
		base = "target"
	}
	if spec.Port == 0 {
		return fmt.Sprintf("%s-%s", s.prefix, base)
	}
	return fmt.Sprintf("%s-%s-%d", s.prefix, base, spec.Port)
}

// AttachCommand returns the command that attaches to a session
func AttachCommand(name string) string {
	return fmt.Sprintf("tmux attach -t %s", name)
}

// Spawn starts spec in a new detached session. A stale session with the
// same name is replaced.
func (s *Spawner) Spawn(ctx context.Context, spec launcher.SpawnSpec) (launcher.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := s.SessionName(spec)
	if s.hasSession(name) {
		if _, err := s.tmux.Command("kill-session", "-t", name); err != nil {
			return nil, fmt.Errorf("failed to replace session %s: %w", name, err)
		}
	}

	args := []string{"new-session", "-d", "-s", name}
	if spec.Dir != "" {
		args = append(args, "-c", spec.Dir)
	}
	for _, kv := range spec.EnvList() {
		args = append(args, "-e", kv)
	}
	args = append(args, shellJoin(spec.Executable, spec.Args))

	if _, err := s.tmux.Command(args...); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", name, err)
	}

	pid := 0
	if out, err := s.tmux.Command("display-message", "-p", "-t", name, "#{pane_pid}"); err == nil {
		pid, _ = strconv.Atoi(strings.TrimSpace(out))
	}

	h := &handle{spawner: s, name: name, pid: pid, done: make(chan struct{})}
	go h.watch()

	s.logger.Info("target started in tmux",
		zap.String("session", name),
		zap.Int("pid", pid),
		zap.String("attach", AttachCommand(name)))
	return h, nil
}

func (s *Spawner) hasSession(name string) bool {
	_, err := s.tmux.Command("has-session", "-t", name)
	return err == nil
}

type handle struct {
	spawner *Spawner
	name    string
	pid     int
	done    chan struct{}
	once    sync.Once
}

func (h *handle) PID() int { return h.pid }

func (h *handle) Done() <-chan struct{} { return h.done }

// Name returns the tmux session name
func (h *handle) Name() string { return h.name }

// Stop kills the tmux session and with it the target
func (h *handle) Stop() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	if _, err := h.spawner.tmux.Command("kill-session", "-t", h.name); err != nil && h.spawner.hasSession(h.name) {
		return fmt.Errorf("failed to kill session %s: %w", h.name, err)
	}
	h.finish()
	return nil
}

func (h *handle) finish() {
	h.once.Do(func() { close(h.done) })
}

// watch closes done once the session disappears
func (h *handle) watch() {
	ticker := h.spawner.clock.Ticker(h.spawner.poll)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			if !h.spawner.hasSession(h.name) {
				h.spawner.logger.Debug("tmux session exited", zap.String("session", h.name))
				h.finish()
				return
			}
		}
	}
}

// shellJoin quotes the command for the shell tmux runs it in
func shellJoin(exe string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quote(exe))
	for _, a := range args {
		parts = append(parts, quote(a))
	}
	return strings.Join(parts, " ")
}

// quote wraps s in single quotes, escaping embedded ones
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

var _ launcher.Spawner = (*Spawner)(nil)
