package cli

import (
	"context"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/output"
)

// Reasons reported when a watched session ends
const (
	endPortClosed    = "port_closed"
	endProcessExited = "process_exited"
	endForgotten     = "forgotten"
)

// WatchCmd launches like launch, then keeps probing the debug port and drops
// the session once it stops answering. Removing the session from the store
// (sessions rm/clear in another shell) also ends the watch.
type WatchCmd struct {
	LaunchFlags `embed:""`

	Interval  time.Duration `default:"2s" help:"Delay between liveness probes of the debug port"`
	OnExit    string        `help:"Command to run (via sh -c) when the session ends"`
	AdapterID string        `help:"Debug adapter session id to record against the session"`
}

// Run executes the watch command
func (c *WatchCmd) Run(globals *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return c.run(ctx, cancel, globals)
}

func (c *WatchCmd) run(ctx context.Context, cancel context.CancelFunc, globals *Globals) error {
	if c.Interval <= 0 {
		return outputErrorCommon(globals, "INVALID_FLAGS", "--interval must be positive")
	}

	rt, res, err := c.start(ctx, cancel, globals)
	if rt != nil {
		defer rt.close()
	}
	if err != nil {
		return err
	}
	if err := writeAttach(globals, res); err != nil {
		return err
	}

	s := res.Session
	if c.AdapterID != "" && rt.launcher.MarkAttached(s.DebugPort, c.AdapterID) {
		s.ExternalSessionID = c.AdapterID
	}

	reason := c.watch(ctx, rt, res)
	if reason == "" {
		// interrupted; the target keeps running for a later reattach
		return nil
	}

	if s.ExternalSessionID == "" || !rt.launcher.AdapterTerminated(s.ExternalSessionID) {
		rt.launcher.SessionEnded(s.DebugPort)
	}
	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteSessionEnd(s, reason)
	} else if !globals.Quiet {
		_ = output.NewTextWriter(globals.Stderr).WriteSessionEnd(s, reason)
	}

	if c.OnExit != "" {
		c.runTrigger(ctx, globals, s, reason)
	}
	return nil
}

// watch blocks until the session ends and returns why, or "" when ctx ended first
func (c *WatchCmd) watch(ctx context.Context, rt *services, res *launcher.Result) string {
	s := res.Session
	log := rt.logger.With(zap.Int("port", s.DebugPort), zap.String("session", string(s.ID)))

	var exited <-chan struct{}
	if res.Handle != nil {
		exited = res.Handle.Done()
	}

	var changed <-chan struct{}
	if persisted, _ := rt.store.Has(s.DebugPort); persisted {
		var err error
		if changed, err = rt.store.Changes(ctx); err != nil {
			log.Debug("store changes unavailable", zap.Error(err))
		}
	}

	ticker := rt.clock.Ticker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ""
		case <-exited:
			log.Info("target exited")
			return endProcessExited
		case _, ok := <-changed:
			if !ok {
				changed = nil
				continue
			}
			if still, err := rt.store.Has(s.DebugPort); err != nil || still {
				continue
			}
			log.Info("session removed from store")
			return endForgotten
		case <-ticker.C:
			if rt.prober.ProbeOnce(ctx, s.DebugIP, s.DebugPort, rt.prober.ConnectTimeout()) {
				continue
			}
			if ctx.Err() != nil {
				return ""
			}
			log.Info("debug port closed")
			return endPortClosed
		}
	}
}

// runTrigger runs the on-exit command with the session in its environment
func (c *WatchCmd) runTrigger(ctx context.Context, globals *Globals, s *domain.Session, reason string) {
	if globals.Format != "ndjson" && !globals.Quiet {
		_ = output.NewTextWriter(globals.Stderr).WriteInfo("[TRIGGER:exit] Running: " + c.OnExit)
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.OnExit)
	cmd.Env = append(os.Environ(),
		"DBGL_TRIGGER=exit",
		"DBGL_REASON="+reason,
		"DBGL_SESSION_ID="+string(s.ID),
		"DBGL_IP="+s.DebugIP,
		"DBGL_PORT="+strconv.Itoa(s.DebugPort),
		"DBGL_WORKSPACE="+s.WorkspacePath,
		"DBGL_ADAPTER_ID="+s.ExternalSessionID,
	)
	cmd.Stdout = globals.Stderr
	cmd.Stderr = globals.Stderr
	err := cmd.Run()

	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteTrigger("exit", c.OnExit, err)
	} else if err != nil {
		_ = output.NewTextWriter(globals.Stderr).WriteWarning("[TRIGGER ERROR] " + c.OnExit + ": " + err.Error())
	}
}
