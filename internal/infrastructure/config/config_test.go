package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Rate limit config
	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)

	// Terminal config
	assert.Equal(t, 5*time.Millisecond, cfg.Terminal.FlushInterval.Std())
	assert.Equal(t, 100*time.Millisecond, cfg.Terminal.ExitDebounce.Std())
	assert.Equal(t, 300*time.Millisecond, cfg.Terminal.SettleDelay.Std())
	assert.Equal(t, 500*time.Millisecond, cfg.Terminal.GraceDelay.Std())
	assert.Equal(t, 2*time.Second, cfg.Terminal.WatchInterval.Std())
	assert.True(t, cfg.Terminal.Prewarm)
	assert.Equal(t, "kit", cfg.Terminal.Program)
	assert.Equal(t, 80, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
}

func TestLoadTerminalDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Terminal, cfg.Terminal)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                     "9000",
		"HOST":                     "127.0.0.1",
		"CORS_ORIGINS":             "http://localhost:3000,app://kit",
		"LOG_LEVEL":                "debug",
		"LOG_DEV":                  "true",
		"RATE_LIMIT_RPS":           "500",
		"RATE_LIMIT_BURST":         "1000",
		"RATE_LIMIT_ENABLED":       "false",
		"TERMINAL_FLUSH_INTERVAL":  "16ms",
		"TERMINAL_SETTLE_DELAY":    "1s",
		"TERMINAL_PREWARM":         "false",
		"TERMINAL_PROGRAM_VERSION": "3.1.4",
		"TERMINAL_COLS":            "132",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{"http://localhost:3000", "app://kit"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)

	assert.Equal(t, 16*time.Millisecond, cfg.Terminal.FlushInterval.Std())
	assert.Equal(t, time.Second, cfg.Terminal.SettleDelay.Std())
	assert.Equal(t, 100*time.Millisecond, cfg.Terminal.ExitDebounce.Std())
	assert.False(t, cfg.Terminal.Prewarm)
	assert.Equal(t, "3.1.4", cfg.Terminal.ProgramVersion)
	assert.Equal(t, 132, cfg.Terminal.Cols)
	assert.Equal(t, 24, cfg.Terminal.Rows)
}

func TestLoadInvalidDuration(t *testing.T) {
	t.Setenv("TERMINAL_GRACE_DELAY", "soon")

	_, err := Load()
	require.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, Default(), cfg)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "host.yaml",
			content: `
server:
  port: "7000"
  allowedOrigins:
    - http://localhost:5173
terminal:
  settleDelay: 750ms
  prewarm: false
  program: devbox
`,
		},
		{
			name: "toml",
			file: "host.toml",
			content: `
[server]
port = "7000"
allowedOrigins = ["http://localhost:5173"]

[terminal]
settleDelay = "750ms"
prewarm = false
program = "devbox"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFile(writeFile(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "7000", cfg.Server.Port)
			assert.Equal(t, []string{"http://localhost:5173"}, cfg.Server.AllowedOrigins)
			assert.Equal(t, 750*time.Millisecond, cfg.Terminal.SettleDelay.Std())
			assert.False(t, cfg.Terminal.Prewarm)
			assert.Equal(t, "devbox", cfg.Terminal.Program)

			// untouched keys keep defaults
			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, 5*time.Millisecond, cfg.Terminal.FlushInterval.Std())
			assert.Equal(t, 200, cfg.RateLimit.Burst)
		})
	}
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = LoadFile(writeFile(t, "host.json", `{}`))
	assert.ErrorContains(t, err, "unsupported config file type")

	_, err = LoadFile(writeFile(t, "host.yaml", "terminal:\n  graceDelay: later\n"))
	assert.Error(t, err)
}

func TestDurationText(t *testing.T) {
	d := Duration(1500 * time.Millisecond)
	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1.5s", string(text))

	var back Duration
	require.NoError(t, back.UnmarshalText(text))
	assert.Equal(t, d, back)
}
