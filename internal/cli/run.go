package cli

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/samber/lo"

	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/output"
)

// RunCmd starts the target without a debug port
type RunCmd struct {
	Workspace string   `short:"w" type:"path" help:"Workspace root (default: current directory)"`
	Exe       string   `help:"Target executable, relative to the workspace (default: launch.executable)"`
	Arg       []string `help:"Argument for the target (can be repeated)"`
	Tmux      bool     `help:"Start the target in a detached tmux session"`
	LogDir    string   `type:"path" help:"Write target output to <exe>.log in this directory"`
	Wait      bool     `help:"Block until the target exits"`
}

// Run executes the run command
func (c *RunCmd) Run(globals *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return c.run(ctx, globals)
}

func (c *RunCmd) run(ctx context.Context, globals *Globals) error {
	if err := validateFlags(globals, c.Tmux, c.LogDir, 0, 0); err != nil {
		return err
	}

	ws := c.Workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	ws, _ = filepath.Abs(ws)

	exe, err := launcher.ResolveExecutable(ws, lo.CoalesceOrEmpty(c.Exe, globals.Config.Launch.Executable))
	if err != nil {
		return outputErrorCommon(globals, "NO_EXECUTABLE", err.Error(), "pass --exe or set launch.executable in dbgl.yaml")
	}
	args := c.Arg
	if len(args) == 0 {
		args = globals.Config.Launch.Args
	}

	rt, err := newServices(globals, servicesOptions{tmux: c.Tmux, logDir: c.LogDir})
	if err != nil {
		return outputErrorCommon(globals, "SETUP_FAILED", err.Error())
	}
	defer rt.close()

	h, err := rt.launcher.Run(ctx, launcher.RunRequest{Workspace: ws, Executable: exe, Args: args})
	if err != nil {
		return outputLaunchError(globals, err)
	}

	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteInfo("target started", 0, h.PID())
	} else if !globals.Quiet {
		_ = output.NewTextWriter(globals.Stdout).WriteInfo(output.SuccessStyle.Render("✓") + " started " + filepath.Base(exe))
	}

	if !c.Wait {
		return nil
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		if err := h.Stop(); err != nil {
			return outputErrorCommon(globals, "STOP_FAILED", err.Error())
		}
		<-h.Done()
	}
	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteInfo("target exited", 0, h.PID())
	}
	return nil
}
