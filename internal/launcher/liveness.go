package launcher

import (
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/reattach"
)

// DefaultLivenessTimeout bounds a single liveness command
const DefaultLivenessTimeout = 5 * time.Second

// CommandLiveness runs a shell command; exit status 0 means the target runs
type CommandLiveness struct {
	Command string
	Timeout time.Duration
	Logger  *zap.Logger
}

// IsRunning runs the command through sh -c
func (c CommandLiveness) IsRunning(ctx context.Context) bool {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultLivenessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := exec.CommandContext(ctx, "sh", "-c", c.Command).Run()
	if c.Logger != nil {
		c.Logger.Debug("liveness check", zap.String("command", c.Command), zap.Bool("running", err == nil))
	}
	return err == nil
}

// NewLiveness returns a predicate for command, or nil when no command is
// configured and port probes alone decide.
func NewLiveness(command string, logger *zap.Logger) reattach.Liveness {
	if command == "" {
		return nil
	}
	return CommandLiveness{Command: command, Logger: logger}
}
