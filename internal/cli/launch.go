package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/domain"
	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/output"
	"github.com/vburojevic/dbgl/internal/tmux"
)

// LaunchFlags are shared by launch and watch. Zero values fall back to config.
type LaunchFlags struct {
	Workspace    string        `short:"w" type:"path" help:"Workspace root (default: current directory)"`
	IP           string        `help:"Debug host handed to the target and the attach config (default: debug.ip)"`
	Port         int           `help:"Preferred debug port (default: debug.port)"`
	Timeout      time.Duration `help:"How long to wait for the debug port (default: launch.timeout)"`
	PollInterval time.Duration `help:"Delay between readiness probes (default: launch.poll_interval)"`
	JustMyCode   bool          `help:"Only step through workspace code"`
	PathMapping  []string      `placeholder:"LOCAL=REMOTE" help:"Extra path mapping (can be repeated)"`
	New          bool          `help:"Skip reattachment and always start a new target"`
	Tmux         bool          `help:"Start the target in a detached tmux session"`
	Exe          string        `help:"Target executable, relative to the workspace (default: launch.executable)"`
	Arg          []string      `help:"Argument for the target (can be repeated)"`
	LogDir       string        `type:"path" help:"Write target output to <exe>-<port>.log in this directory"`
}

// request resolves the flags against the loaded config
func (f *LaunchFlags) request(globals *Globals) (launcher.Request, error) {
	cfg := globals.Config

	ws := f.Workspace
	if ws == "" {
		wd, err := os.Getwd()
		if err != nil {
			return launcher.Request{}, outputErrorCommon(globals, "INVALID_WORKSPACE", err.Error())
		}
		ws = wd
	}
	ws, err := filepath.Abs(ws)
	if err != nil {
		return launcher.Request{}, outputErrorCommon(globals, "INVALID_WORKSPACE", err.Error())
	}

	mappings := append([]domain.PathMapping(nil), cfg.Debug.PathMappings...)
	for _, raw := range f.PathMapping {
		m, err := parsePathMapping(raw)
		if err != nil {
			return launcher.Request{}, outputErrorCommon(globals, "INVALID_FLAGS", err.Error(), "use --path-mapping /local/dir=/remote/dir")
		}
		mappings = append(mappings, m)
	}

	exe, err := launcher.ResolveExecutable(ws, lo.CoalesceOrEmpty(f.Exe, cfg.Launch.Executable))
	if err != nil {
		return launcher.Request{}, outputErrorCommon(globals, "NO_EXECUTABLE", err.Error(), "pass --exe or set launch.executable in dbgl.yaml")
	}
	args := f.Arg
	if len(args) == 0 {
		args = cfg.Launch.Args
	}

	return launcher.Request{
		Workspace:     ws,
		ForceNew:      f.New,
		IP:            lo.CoalesceOrEmpty(f.IP, cfg.Debug.IP),
		PreferredPort: lo.CoalesceOrEmpty(f.Port, cfg.Debug.Port),
		JustMyCode:    f.JustMyCode || cfg.Debug.JustMyCode,
		PathMappings:  mappings,
		DebugOptions:  cfg.Debug.Options,
		Timeout:       lo.CoalesceOrEmpty(f.Timeout, cfg.Launch.Timeout),
		PollInterval:  lo.CoalesceOrEmpty(f.PollInterval, cfg.Launch.PollInterval),
		Executable:    exe,
		Args:          args,
	}, nil
}

func parsePathMapping(raw string) (domain.PathMapping, error) {
	local, remote, ok := strings.Cut(raw, "=")
	if !ok || local == "" || remote == "" {
		return domain.PathMapping{}, fmt.Errorf("invalid path mapping %q", raw)
	}
	return domain.PathMapping{LocalRoot: local, RemoteRoot: remote}, nil
}

// start validates flags, wires the services and performs the launch
func (f *LaunchFlags) start(ctx context.Context, cancel context.CancelFunc, globals *Globals) (*services, *launcher.Result, error) {
	req, err := f.request(globals)
	if err != nil {
		return nil, nil, err
	}
	if err := validateFlags(globals, f.Tmux, f.LogDir, req.Timeout, req.PollInterval); err != nil {
		return nil, nil, err
	}

	rt, err := newServices(globals, servicesOptions{tmux: f.Tmux, logDir: f.LogDir})
	if err != nil {
		if errors.Is(err, errTmuxUnavailable) {
			return nil, nil, outputErrorCommon(globals, "TMUX_NOT_AVAILABLE", err.Error(), "install tmux or drop --tmux")
		}
		return nil, nil, outputErrorCommon(globals, "SETUP_FAILED", err.Error())
	}

	status := fmt.Sprintf("waiting for debug port (%s)", filepath.Base(req.Executable))
	res, err := withProgress(globals, cancel, status, func() (*launcher.Result, error) {
		return rt.launcher.Launch(ctx, req)
	})
	if err != nil {
		return rt, nil, outputLaunchError(globals, err)
	}
	return rt, res, nil
}

// LaunchCmd reattaches to a reachable debuggee or starts a new one
type LaunchCmd struct {
	LaunchFlags `embed:""`
}

// Run executes the launch command
func (c *LaunchCmd) Run(globals *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, res, err := c.start(ctx, cancel, globals)
	if rt != nil {
		defer rt.close()
	}
	if err != nil {
		return err
	}
	return writeAttach(globals, res)
}

func writeAttach(globals *Globals, res *launcher.Result) error {
	out := output.NewAttachOutput(res.Session, res.Attach, res.Reattached)
	if res.Handle != nil {
		out.PID = res.Handle.PID()
		if named, ok := res.Handle.(interface{ Name() string }); ok {
			out.Tmux = tmux.AttachCommand(named.Name())
		}
	}
	globals.logger().Debug("attach config ready",
		zap.Int("port", res.Session.DebugPort),
		zap.Bool("reattached", res.Reattached))

	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteAttach(out)
	}
	return output.NewTextWriter(globals.Stdout).WriteAttach(out)
}
