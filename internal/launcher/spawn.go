package launcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SpawnSpec describes the process to start
type SpawnSpec struct {
	Executable string
	Args       []string
	Dir        string
	Env        map[string]string
	// Port is zero when the target runs without debugging
	Port int
}

// EnvList renders Env as sorted KEY=VALUE pairs
func (s SpawnSpec) EnvList() []string {
	env := lo.MapToSlice(s.Env, func(k, v string) string { return k + "=" + v })
	sort.Strings(env)
	return env
}

// Handle controls a spawned target
type Handle interface {
	PID() int
	Stop() error
	Done() <-chan struct{}
}

// Spawner starts the target program
type Spawner interface {
	Spawn(ctx context.Context, spec SpawnSpec) (Handle, error)
}

// SpawnerFunc adapts a function to Spawner
type SpawnerFunc func(ctx context.Context, spec SpawnSpec) (Handle, error)

// Spawn calls f
func (f SpawnerFunc) Spawn(ctx context.Context, spec SpawnSpec) (Handle, error) { return f(ctx, spec) }

// ResolveExecutable returns the absolute path of the configured executable.
// Relative paths are taken relative to the workspace.
func ResolveExecutable(workspace, configured string) (string, error) {
	if configured == "" {
		return "", errors.New("no executable configured")
	}
	if filepath.IsAbs(configured) {
		return configured, nil
	}
	if workspace == "" {
		return "", fmt.Errorf("relative executable %q needs a workspace", configured)
	}
	return filepath.Join(workspace, configured), nil
}

// ExecSpawner starts the target as a child process. Output goes to a
// per-port log file when a log directory is set and is discarded otherwise.
type ExecSpawner struct {
	logs   *rotation
	logger *zap.Logger
}

// NewExecSpawner creates an ExecSpawner writing output under logDir
func NewExecSpawner(logDir string, logger *zap.Logger) *ExecSpawner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExecSpawner{logger: logger}
	if logDir != "" {
		s.logs = newRotation(func(spec SpawnSpec) (string, error) {
			if err := os.MkdirAll(logDir, 0o755); err != nil {
				return "", err
			}
			return filepath.Join(logDir, logFileName(spec)), nil
		})
	}
	return s
}

func logFileName(spec SpawnSpec) string {
	base := filepath.Base(spec.Executable)
	if spec.Port == 0 {
		return base + ".log"
	}
	return fmt.Sprintf("%s-%d.log", base, spec.Port)
}

// Spawn starts the process in its own process group. The process is not bound
// to ctx, and a terminal interrupt aimed at dbgl does not reach it, so a target
// that outlives dbgl can be reattached later.
func (s *ExecSpawner) Spawn(ctx context.Context, spec SpawnSpec) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(spec.Executable, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.EnvList()...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logPath string
	if s.logs != nil {
		f, path, err := s.logs.Open(spec)
		if err != nil {
			return nil, err
		}
		cmd.Stdout, cmd.Stderr = f, f
		logPath = path
	}

	if err := cmd.Start(); err != nil {
		if s.logs != nil {
			s.logs.Release(cmd.Stdout)
		}
		return nil, err
	}

	h := &execHandle{cmd: cmd, done: make(chan struct{})}
	go h.wait(s.logs)

	s.logger.Info("target started",
		zap.String("executable", spec.Executable),
		zap.Int("pid", cmd.Process.Pid),
		zap.Int("port", spec.Port),
		zap.String("log", logPath))
	return h, nil
}

type execHandle struct {
	cmd  *exec.Cmd
	done chan struct{}
	once sync.Once
}

func (h *execHandle) wait(logs *rotation) {
	_ = h.cmd.Wait()
	if logs != nil {
		logs.Release(h.cmd.Stdout)
	}
	h.once.Do(func() { close(h.done) })
}

func (h *execHandle) PID() int { return h.cmd.Process.Pid }

func (h *execHandle) Done() <-chan struct{} { return h.done }

// Stop asks the process group to terminate
func (h *execHandle) Stop() error {
	select {
	case <-h.done:
		return nil
	default:
	}
	err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGTERM)
	if errors.Is(err, syscall.ESRCH) {
		err = h.cmd.Process.Signal(syscall.SIGTERM)
	}
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
