package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Logging   LogConfig       `yaml:"logging" toml:"logging"`
	RateLimit RateLimitConfig `yaml:"rateLimit" toml:"rateLimit"`
	Terminal  TerminalConfig  `yaml:"terminal" toml:"terminal"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host" toml:"host"`
	// AllowedOrigins lists browser origins allowed to connect; "*" allows any
	AllowedOrigins []string `envconfig:"CORS_ORIGINS" default:"*" yaml:"allowedOrigins" toml:"allowedOrigins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requestsPerSecond" toml:"requestsPerSecond"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled" toml:"enabled"`
}

// TerminalConfig holds PTY pool and session configuration.
type TerminalConfig struct {
	FlushInterval Duration `envconfig:"TERMINAL_FLUSH_INTERVAL" default:"5ms" yaml:"flushInterval" toml:"flushInterval"`
	ExitDebounce  Duration `envconfig:"TERMINAL_EXIT_DEBOUNCE" default:"100ms" yaml:"exitDebounce" toml:"exitDebounce"`
	SettleDelay   Duration `envconfig:"TERMINAL_SETTLE_DELAY" default:"300ms" yaml:"settleDelay" toml:"settleDelay"`
	GraceDelay    Duration `envconfig:"TERMINAL_GRACE_DELAY" default:"500ms" yaml:"graceDelay" toml:"graceDelay"`
	WatchInterval Duration `envconfig:"TERMINAL_WATCH_INTERVAL" default:"2s" yaml:"watchInterval" toml:"watchInterval"`
	// WatchOwners polls the OS process table for the owner pids of open
	// sessions; enable it when UIs pass real OS pids
	WatchOwners    bool   `envconfig:"TERMINAL_WATCH_OWNERS" default:"false" yaml:"watchOwners" toml:"watchOwners"`
	Prewarm        bool   `envconfig:"TERMINAL_PREWARM" default:"true" yaml:"prewarm" toml:"prewarm"`
	Program        string `envconfig:"TERMINAL_PROGRAM" default:"kit" yaml:"program" toml:"program"`
	ProgramVersion string `envconfig:"TERMINAL_PROGRAM_VERSION" default:"1.0.0" yaml:"programVersion" toml:"programVersion"`
	Cols           int    `envconfig:"TERMINAL_COLS" default:"80" yaml:"cols" toml:"cols"`
	Rows           int    `envconfig:"TERMINAL_ROWS" default:"24" yaml:"rows" toml:"rows"`
}

// Duration is a time.Duration written as "250ms" in env vars and files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// LoadFile overlays a YAML or TOML file onto the defaults. Keys missing from
// the file keep their default values.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8000",
			Host:           "0.0.0.0",
			AllowedOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		Terminal: TerminalConfig{
			FlushInterval:  Duration(5 * time.Millisecond),
			ExitDebounce:   Duration(100 * time.Millisecond),
			SettleDelay:    Duration(300 * time.Millisecond),
			GraceDelay:     Duration(500 * time.Millisecond),
			WatchInterval:  Duration(2 * time.Second),
			WatchOwners:    false,
			Prewarm:        true,
			Program:        "kit",
			ProgramVersion: "1.0.0",
			Cols:           80,
			Rows:           24,
		},
	}
}
