package cli

import (
	"errors"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/output"
	"github.com/vburojevic/dbgl/internal/ports"
	"github.com/vburojevic/dbgl/internal/probe"
	"github.com/vburojevic/dbgl/internal/reattach"
	"github.com/vburojevic/dbgl/internal/session"
	"github.com/vburojevic/dbgl/internal/store"
	"github.com/vburojevic/dbgl/internal/tmux"
)

// services is the wired core shared by the launch-style commands
type services struct {
	clock    clock.Clock
	logger   *zap.Logger
	ports    *ports.Allocator
	registry *session.Registry
	store    *store.Store
	prober   *probe.Prober
	launcher *launcher.Launcher
}

type servicesOptions struct {
	tmux   bool
	logDir string
}

var errTmuxUnavailable = errors.New("tmux is not installed or not in PATH")

func newServices(globals *Globals, opts servicesOptions) (*services, error) {
	cfg := globals.Config
	log := globals.logger()
	clk := globals.clockOrReal()

	st, err := openStore(globals)
	if err != nil {
		return nil, err
	}

	allocator := ports.NewAllocator(
		ports.WithBindHost(cfg.Ports.BindHost),
		ports.WithLogger(log.Named("ports")),
	)
	registry := session.NewRegistry(allocator, log.Named("registry"))

	prober := newProber(globals, clk)

	engine := reattach.NewEngine(registry, st, prober, cfg.Launch.ProbeTimeout, log.Named("reattach"))

	spawner, err := newSpawner(globals, opts, clk)
	if err != nil {
		return nil, err
	}

	l := launcher.New(launcher.Deps{
		Ports:    allocator,
		Registry: registry,
		Store:    st,
		Prober:   prober,
		Reattach: engine,
		Spawner:  spawner,
	},
		launcher.WithLiveness(launcher.NewLiveness(cfg.Launch.LivenessCommand, log.Named("liveness"))),
		launcher.WithObserver(stateObserver(globals)),
		launcher.WithClock(clk),
		launcher.WithLogger(log.Named("launcher")),
	)

	return &services{
		clock:    clk,
		logger:   log,
		ports:    allocator,
		registry: registry,
		store:    st,
		prober:   prober,
		launcher: l,
	}, nil
}

// newProber builds the readiness prober shared by every command
func newProber(globals *Globals, clk clock.Clock) *probe.Prober {
	opts := []probe.Option{
		probe.WithClock(clk),
		probe.WithConnectTimeout(globals.Config.Launch.ProbeTimeout),
		probe.WithLogger(globals.logger().Named("probe")),
	}
	if globals.dialer != nil {
		opts = append(opts, probe.WithDialer(globals.dialer))
	}
	return probe.New(opts...)
}

func openStore(globals *Globals) (*store.Store, error) {
	path := globals.Config.Store.Path
	if path == "" {
		var err error
		if path, err = store.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return store.New(path, globals.logger().Named("store"))
}

func newSpawner(globals *Globals, opts servicesOptions, clk clock.Clock) (launcher.Spawner, error) {
	if globals.spawner != nil {
		return globals.spawner, nil
	}
	log := globals.logger().Named("spawn")
	if opts.tmux || globals.Config.Launch.Spawner == "tmux" {
		if !tmux.IsTmuxAvailable() {
			return nil, errTmuxUnavailable
		}
		s, err := tmux.NewSpawner(tmux.WithClock(clk), tmux.WithLogger(log))
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	logDir := opts.logDir
	if logDir == "" {
		logDir = globals.Config.Launch.LogDir
	}
	return launcher.NewExecSpawner(logDir, log), nil
}

// stateObserver reports launcher transitions under --verbose
func stateObserver(globals *Globals) launcher.Observer {
	if !globals.Verbose {
		return nil
	}
	return func(t launcher.Transition) {
		d := t.Debug()
		if globals.Format == "ndjson" {
			_ = output.NewNDJSONWriter(globals.Stdout).WriteState(d)
			return
		}
		_ = output.NewTextWriter(globals.Stderr).WriteState(d)
	}
}

func (rt *services) close() {
	rt.launcher.Shutdown()
	rt.logger.Debug("services closed", zap.Ints("claimed", rt.ports.Claimed()))
}
