package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/vburojevic/dbgl/internal/domain"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"`
	Level   string `mapstructure:"level"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Debug  DebugConfig  `mapstructure:"debug"`
	Launch LaunchConfig `mapstructure:"launch"`
	Store  StoreConfig  `mapstructure:"store"`
	Ports  PortsConfig  `mapstructure:"ports"`
}

// DebugConfig is the debug endpoint and attach behavior
type DebugConfig struct {
	IP           string               `mapstructure:"ip"`
	Port         int                  `mapstructure:"port"`
	JustMyCode   bool                 `mapstructure:"just_my_code"`
	PathMappings []domain.PathMapping `mapstructure:"path_mappings"`
	Options      domain.DebugOptions  `mapstructure:"options"`
}

// LaunchConfig controls how the target is started and awaited
type LaunchConfig struct {
	Executable      string        `mapstructure:"executable"`
	Args            []string      `mapstructure:"args"`
	Timeout         time.Duration `mapstructure:"timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	ProbeTimeout    time.Duration `mapstructure:"probe_timeout"`
	Spawner         string        `mapstructure:"spawner"` // exec or tmux
	LivenessCommand string        `mapstructure:"liveness_command"`
	LogDir          string        `mapstructure:"log_dir"`
}

// StoreConfig locates the persisted session file
type StoreConfig struct {
	Path string `mapstructure:"path"` // empty = ~/.dbgl/sessions.json
}

// PortsConfig controls port allocation
type PortsConfig struct {
	BindHost string `mapstructure:"bind_host"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format:  "auto",
		Level:   "warn",
		Quiet:   false,
		Verbose: false,
		Debug: DebugConfig{
			IP:   "localhost",
			Port: 56788,
		},
		Launch: LaunchConfig{
			Timeout:      60 * time.Second,
			PollInterval: 500 * time.Millisecond,
			ProbeTimeout: time.Second,
			Spawner:      "exec",
		},
		Ports: PortsConfig{
			BindHost: "127.0.0.1",
		},
	}
}

// Validate rejects values no command can work with
func (c *Config) Validate() error {
	switch c.Format {
	case "ndjson", "text", "auto":
	default:
		return fmt.Errorf("invalid format %q (use ndjson, text or auto)", c.Format)
	}
	switch c.Launch.Spawner {
	case "exec", "tmux":
	default:
		return fmt.Errorf("invalid launch.spawner %q (use exec or tmux)", c.Launch.Spawner)
	}
	if c.Debug.Port < 0 || c.Debug.Port > 65535 {
		return fmt.Errorf("invalid debug.port %d", c.Debug.Port)
	}
	if c.Launch.Timeout <= 0 || c.Launch.PollInterval <= 0 || c.Launch.ProbeTimeout <= 0 {
		return fmt.Errorf("launch timeouts must be positive")
	}
	return nil
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := newViper()

	// Config paths, lowest precedence first
	v.SetConfigName("dbgl")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/dbgl/")
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "dbgl"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Fall back to .dbglrc in cwd or home
		v.SetConfigName(".dbglrc")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	return decode(v)
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()

	// Environment variables
	v.SetEnvPrefix("DBGL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.BindEnv("format", "DBGL_FORMAT")
	v.BindEnv("level", "DBGL_LEVEL")
	v.BindEnv("quiet", "DBGL_QUIET")
	v.BindEnv("verbose", "DBGL_VERBOSE")
	v.BindEnv("debug.ip", "DBGL_IP")
	v.BindEnv("debug.port", "DBGL_PORT")
	v.BindEnv("launch.executable", "DBGL_EXECUTABLE")
	v.BindEnv("launch.timeout", "DBGL_TIMEOUT")
	v.BindEnv("launch.spawner", "DBGL_SPAWNER")
	v.BindEnv("launch.liveness_command", "DBGL_LIVENESS_COMMAND")
	v.BindEnv("store.path", "DBGL_STORE")

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("debug.ip", cfg.Debug.IP)
	v.SetDefault("debug.port", cfg.Debug.Port)
	v.SetDefault("debug.just_my_code", cfg.Debug.JustMyCode)
	v.SetDefault("debug.path_mappings", cfg.Debug.PathMappings)
	v.SetDefault("debug.options.show_private_members", false)
	v.SetDefault("debug.options.show_special_members", false)
	v.SetDefault("debug.options.show_function_members", false)
	v.SetDefault("debug.options.show_builtin_members", false)
	v.SetDefault("launch.executable", cfg.Launch.Executable)
	v.SetDefault("launch.args", cfg.Launch.Args)
	v.SetDefault("launch.timeout", cfg.Launch.Timeout)
	v.SetDefault("launch.poll_interval", cfg.Launch.PollInterval)
	v.SetDefault("launch.probe_timeout", cfg.Launch.ProbeTimeout)
	v.SetDefault("launch.spawner", cfg.Launch.Spawner)
	v.SetDefault("launch.liveness_command", cfg.Launch.LivenessCommand)
	v.SetDefault("launch.log_dir", cfg.Launch.LogDir)
	v.SetDefault("store.path", cfg.Store.Path)
	v.SetDefault("ports.bind_host", cfg.Ports.BindHost)

	return v
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file that would be loaded
func ConfigFile() string {
	v := viper.New()

	v.SetConfigName("dbgl")
	v.SetConfigType("yaml")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	v.SetConfigName(".dbglrc")
	if err := v.ReadInConfig(); err == nil {
		return v.ConfigFileUsed()
	}

	return ""
}

// Sample is a commented starter config printed by `dbgl config generate`
const Sample = `# dbgl configuration
format: auto          # ndjson, text or auto
level: warn           # debug, info, warn, error
debug:
  ip: localhost
  port: 56788         # preferred port; a free one is picked if taken
  just_my_code: false
  path_mappings: []   # - {local_root: /src, remote_root: /app}
  options:
    show_private_members: false
    show_special_members: false
    show_function_members: false
    show_builtin_members: false
launch:
  executable: ""      # absolute, or relative to the workspace
  args: []
  timeout: 60s
  poll_interval: 500ms
  probe_timeout: 1s
  spawner: exec       # exec or tmux
  liveness_command: "" # exit 0 when the target is running
  log_dir: ""
store:
  path: ""            # default ~/.dbgl/sessions.json
ports:
  bind_host: 127.0.0.1
`
