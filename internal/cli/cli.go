package cli

import (
	"io"
	"os"

	"github.com/benbjohnson/clock"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/vburojevic/dbgl/internal/config"
	"github.com/vburojevic/dbgl/internal/launcher"
	"github.com/vburojevic/dbgl/internal/probe"
)

// Version and Commit are set at build time
var (
	Version = "dev"
	Commit  = "none"
)

// CLI is the root command structure for dbgl
type CLI struct {
	Format  string `short:"f" default:"${config_format}" enum:"ndjson,text,auto" help:"Output format (auto: text on a terminal, ndjson otherwise)"`
	Level   string `default:"${config_level}" enum:"debug,info,warn,error" help:"Log level for --verbose diagnostics"`
	Quiet   bool   `short:"q" help:"Suppress non-essential output"`
	Verbose bool   `short:"v" help:"Emit launcher state transitions and debug logs"`

	Launch     LaunchCmd     `cmd:"" help:"Reattach to a running debuggee or launch a new one and print its attach config"`
	Watch      WatchCmd      `cmd:"" help:"Launch, then keep probing the debug port until the session ends"`
	Run        RunCmd        `cmd:"" help:"Run the target without debugging"`
	Probe      ProbeCmd      `cmd:"" help:"Check whether a debug port accepts connections"`
	Sessions   SessionsCmd   `cmd:"" help:"Inspect or clear persisted debug sessions"`
	Config     ConfigCmd     `cmd:"" help:"Show or manage configuration"`
	Schema     SchemaCmd     `cmd:"" help:"Output JSON Schema for NDJSON output types"`
	Completion CompletionCmd `cmd:"" help:"Generate shell completion script"`
	Version    VersionCmd    `cmd:"" help:"Show version information"`
}

// Globals contains global flags and shared state accessible to all commands
type Globals struct {
	Format  string
	Level   string
	Quiet   bool
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
	Config  *config.Config
	Logger  *zap.Logger

	// overrides for tests
	clock   clock.Clock
	dialer  probe.Dialer
	spawner launcher.Spawner
}

// NewGlobals creates a Globals from CLI flags
func NewGlobals(cli *CLI) *Globals {
	return NewGlobalsWithConfig(cli, config.Default())
}

// NewGlobalsWithConfig creates a Globals from CLI flags with config fallbacks.
// CLI flags take precedence over config values.
func NewGlobalsWithConfig(cli *CLI, cfg *config.Config) *Globals {
	g := &Globals{
		Format:  cli.Format,
		Level:   cli.Level,
		Quiet:   cli.Quiet || cfg.Quiet,
		Verbose: cli.Verbose || cfg.Verbose,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Config:  cfg,
	}
	if g.Format == "" {
		g.Format = cfg.Format
	}
	if g.Format == "auto" || g.Format == "" {
		g.Format = "ndjson"
		if isTerminal(os.Stdout) {
			g.Format = "text"
		}
	}
	g.Logger = newLogger(g.Stderr, g.Level, g.Verbose)
	return g
}

func (g *Globals) logger() *zap.Logger {
	if g.Logger == nil {
		return zap.NewNop()
	}
	return g.Logger
}

func (g *Globals) clockOrReal() clock.Clock {
	if g.clock == nil {
		return clock.New()
	}
	return g.clock
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
