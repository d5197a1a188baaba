package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/vburojevic/dbgl/internal/cli"
	"github.com/vburojevic/dbgl/internal/config"
)

const quickStart = `dbgl - reattach-or-launch debug sessions

Quick start:
  dbgl launch --exe server.py           Start (or reuse) a debuggee and print its attach config
  dbgl watch --exe server.py            Same, then report when the session ends
  dbgl sessions                         List persisted sessions

For help:
  dbgl --help                           All commands and flags
  dbgl schema                           JSON Schema of the NDJSON output
`

func main() {
	if len(os.Args) == 1 {
		fmt.Print(quickStart)
		return
	}

	// Load configuration from files/environment
	cfg, err := config.Load()
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		cfg = config.Default()
	}

	var c cli.CLI

	// Config values become flag defaults; explicit flags still win
	vars := kong.Vars{
		"config_format": cfg.Format,
		"config_level":  cfg.Level,
	}

	ctx := kong.Parse(&c,
		kong.Name("dbgl"),
		kong.Description("dbgl: start or reattach to a debuggee and hand back its debug-adapter attach config"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}),
		vars,
	)

	globals := cli.NewGlobalsWithConfig(&c, cfg)
	if err := ctx.Run(globals); err != nil {
		os.Exit(1)
	}
}
