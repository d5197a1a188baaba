package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vburojevic/dbgl/internal/output"
)

// ProbeCmd checks a debug port once or waits for it to open
type ProbeCmd struct {
	Host     string        `arg:"" optional:"" help:"Host to probe (default: debug.ip)"`
	Port     int           `arg:"" optional:"" help:"Port to probe (default: debug.port)"`
	Wait     bool          `help:"Keep probing until the port opens or --timeout passes"`
	Timeout  time.Duration `help:"Total wait with --wait (default: launch.timeout)"`
	Interval time.Duration `help:"Delay between probes with --wait (default: launch.poll_interval)"`
}

// Run executes the probe command
func (c *ProbeCmd) Run(globals *Globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return c.run(ctx, globals)
}

func (c *ProbeCmd) run(ctx context.Context, globals *Globals) error {
	cfg := globals.Config
	host, port := c.Host, c.Port
	if host == "" {
		host = cfg.Debug.IP
	}
	if port == 0 {
		port = cfg.Debug.Port
	}
	if port <= 0 || port > 65535 {
		return outputErrorCommon(globals, "INVALID_FLAGS", fmt.Sprintf("invalid port %d", port))
	}

	clk := globals.clockOrReal()
	p := newProber(globals, clk)

	start := clk.Now()
	var reachable bool
	if c.Wait {
		timeout, interval := c.Timeout, c.Interval
		if timeout <= 0 {
			timeout = cfg.Launch.Timeout
		}
		if interval <= 0 {
			interval = cfg.Launch.PollInterval
		}
		waitCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		reachable, _ = withProgress(globals, cancel, fmt.Sprintf("waiting for %s:%d", host, port), func() (bool, error) {
			return p.PollUntilReady(waitCtx, host, port, timeout, interval), nil
		})
	} else {
		reachable = p.ProbeOnce(ctx, host, port, 0)
	}
	waited := clk.Since(start)

	if globals.Format == "ndjson" {
		_ = output.NewNDJSONWriter(globals.Stdout).WriteProbe(host, port, reachable, waited)
	} else {
		_ = output.NewTextWriter(globals.Stdout).WriteProbe(host, port, reachable, waited)
	}
	if !reachable {
		return fmt.Errorf("%s:%d is not accepting connections", host, port)
	}
	return nil
}
