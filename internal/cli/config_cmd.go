package cli

import (
	"fmt"
	"strings"

	"github.com/vburojevic/dbgl/internal/config"
	"github.com/vburojevic/dbgl/internal/output"
)

// ConfigCmd groups configuration commands
type ConfigCmd struct {
	Show     ConfigShowCmd     `cmd:"" default:"1" help:"Show the effective configuration"`
	Path     ConfigPathCmd     `cmd:"" help:"Show which config file is loaded"`
	Generate ConfigGenerateCmd `cmd:"" help:"Print a sample dbgl.yaml"`
}

// ConfigShowCmd prints the effective configuration
type ConfigShowCmd struct{}

// ConfigOutput is the NDJSON form of the effective configuration
type ConfigOutput struct {
	Type          string              `json:"type"`
	SchemaVersion int                 `json:"schemaVersion"`
	File          string              `json:"file,omitempty"`
	Format        string              `json:"format"`
	Level         string              `json:"level"`
	Debug         config.DebugConfig  `json:"debug"`
	Launch        config.LaunchConfig `json:"launch"`
	Store         config.StoreConfig  `json:"store"`
	Ports         config.PortsConfig  `json:"ports"`
}

// Run executes the show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	cfg := globals.Config
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Encode(ConfigOutput{
			Type:          "config",
			SchemaVersion: output.SchemaVersion,
			File:          config.ConfigFile(),
			Format:        cfg.Format,
			Level:         cfg.Level,
			Debug:         cfg.Debug,
			Launch:        cfg.Launch,
			Store:         cfg.Store,
			Ports:         cfg.Ports,
		})
	}

	w := globals.Stdout
	fmt.Fprintln(w, output.HeaderStyle.Render("Current Configuration:"))
	if file := config.ConfigFile(); file != "" {
		fmt.Fprintf(w, "  file:   %s\n", file)
	}
	fmt.Fprintf(w, "  format: %s\n", cfg.Format)
	fmt.Fprintf(w, "  level:  %s\n", cfg.Level)
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.HeaderStyle.Render("Debug:"))
	fmt.Fprintf(w, "  endpoint:     %s:%d\n", cfg.Debug.IP, cfg.Debug.Port)
	fmt.Fprintf(w, "  just_my_code: %t\n", cfg.Debug.JustMyCode)
	for _, m := range cfg.Debug.PathMappings {
		fmt.Fprintf(w, "  mapping:      %s -> %s\n", m.LocalRoot, m.RemoteRoot)
	}
	if flags := cfg.Debug.Options.Flags(); len(flags) > 0 {
		fmt.Fprintf(w, "  flags:        %s\n", strings.Join(flags, ", "))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.HeaderStyle.Render("Launch:"))
	fmt.Fprintf(w, "  executable:    %s\n", orNone(cfg.Launch.Executable))
	if len(cfg.Launch.Args) > 0 {
		fmt.Fprintf(w, "  args:          %s\n", strings.Join(cfg.Launch.Args, " "))
	}
	fmt.Fprintf(w, "  spawner:       %s\n", cfg.Launch.Spawner)
	fmt.Fprintf(w, "  timeout:       %s\n", cfg.Launch.Timeout)
	fmt.Fprintf(w, "  poll_interval: %s\n", cfg.Launch.PollInterval)
	fmt.Fprintf(w, "  probe_timeout: %s\n", cfg.Launch.ProbeTimeout)
	fmt.Fprintf(w, "  liveness:      %s\n", orNone(cfg.Launch.LivenessCommand))
	fmt.Fprintf(w, "  log_dir:       %s\n", orNone(cfg.Launch.LogDir))
	fmt.Fprintln(w)
	fmt.Fprintln(w, output.HeaderStyle.Render("Store:"))
	fmt.Fprintf(w, "  path:      %s\n", orNone(cfg.Store.Path))
	fmt.Fprintf(w, "  bind_host: %s\n", cfg.Ports.BindHost)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return output.MutedStyle.Render("(none)")
	}
	return s
}

// ConfigPathCmd prints the loaded config file
type ConfigPathCmd struct{}

// Run executes the path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).Encode(map[string]interface{}{
			"type":          "config_path",
			"schemaVersion": output.SchemaVersion,
			"path":          path,
			"found":         path != "",
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found")
		fmt.Fprintln(globals.Stdout, "Create one with: dbgl config generate > dbgl.yaml")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}

// ConfigGenerateCmd prints a sample config
type ConfigGenerateCmd struct{}

// Run executes the generate command
func (c *ConfigGenerateCmd) Run(globals *Globals) error {
	_, err := fmt.Fprint(globals.Stdout, config.Sample)
	return err
}
