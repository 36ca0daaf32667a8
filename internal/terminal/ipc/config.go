package ipc

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Capture modes accepted on the wire
const (
	CaptureFull      = "full"
	CaptureTail      = "tail"
	CaptureSelection = "selection"
	CaptureSentinel  = "sentinel"
	CaptureNone      = "none"
)

// Capture defaults
const (
	DefaultTailLines     = 1000
	DefaultSentinelStart = "<<START>>"
	DefaultSentinelEnd   = "<<END>>"
)

// ShellKind tags how a session chose its shell
type ShellKind int

const (
	// ShellUnset means no shell was given; the resolver falls back to defaults
	ShellUnset ShellKind = iota
	// ShellLogin is `shell: true`: the user's login shell with login args
	ShellLogin
	// ShellDisabled is `shell: false`: run the command directly
	ShellDisabled
	// ShellPath is an explicit shell path
	ShellPath
)

// ShellSpec is the normalized form of the `shell` field, which arrives as a
// string, a boolean or null.
type ShellSpec struct {
	Kind ShellKind
	Path string
}

// UnmarshalJSON implements json.Unmarshaler
func (s *ShellSpec) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid shell: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		*s = ShellSpec{}
	case bool:
		if v {
			*s = ShellSpec{Kind: ShellLogin}
		} else {
			*s = ShellSpec{Kind: ShellDisabled}
		}
	case string:
		if v == "" {
			*s = ShellSpec{}
		} else {
			*s = ShellSpec{Kind: ShellPath, Path: v}
		}
	default:
		return fmt.Errorf("invalid shell: expected string or bool, got %T", raw)
	}
	return nil
}

// MarshalJSON implements json.Marshaler
func (s ShellSpec) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case ShellLogin:
		return []byte("true"), nil
	case ShellDisabled:
		return []byte("false"), nil
	case ShellPath:
		return sonic.Marshal(s.Path)
	default:
		return []byte("null"), nil
	}
}

// CaptureConfig is the normalized capture policy of a session.
// The zero value captures nothing.
type CaptureConfig struct {
	Mode          string `json:"mode"`
	TailLines     int    `json:"tailLines"`
	StripANSI     bool   `json:"stripAnsi"`
	SentinelStart string `json:"sentinelStart"`
	SentinelEnd   string `json:"sentinelEnd"`
}

// DefaultCaptureConfig is what `capture: true` expands to
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		Mode:          CaptureFull,
		TailLines:     DefaultTailLines,
		StripANSI:     true,
		SentinelStart: DefaultSentinelStart,
		SentinelEnd:   DefaultSentinelEnd,
	}
}

// Enabled reports whether anything is captured
func (c CaptureConfig) Enabled() bool {
	return c.Mode != "" && c.Mode != CaptureNone
}

// UnmarshalJSON accepts true, false, null or an object with optional fields
func (c *CaptureConfig) UnmarshalJSON(data []byte) error {
	var flag interface{}
	if err := sonic.Unmarshal(data, &flag); err != nil {
		return fmt.Errorf("invalid capture: %w", err)
	}

	switch v := flag.(type) {
	case nil:
		*c = CaptureConfig{Mode: CaptureNone}
		return nil
	case bool:
		if v {
			*c = DefaultCaptureConfig()
		} else {
			*c = CaptureConfig{Mode: CaptureNone}
		}
		return nil
	case map[string]interface{}:
	default:
		return fmt.Errorf("invalid capture: expected bool or object, got %T", flag)
	}

	var wire struct {
		Mode          *string `json:"mode"`
		TailLines     *int    `json:"tailLines"`
		StripANSI     *bool   `json:"stripAnsi"`
		SentinelStart *string `json:"sentinelStart"`
		SentinelEnd   *string `json:"sentinelEnd"`
	}
	if err := sonic.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("invalid capture: %w", err)
	}

	cfg := DefaultCaptureConfig()
	if wire.Mode != nil && *wire.Mode != "" {
		cfg.Mode = *wire.Mode
	}
	if wire.TailLines != nil {
		cfg.TailLines = *wire.TailLines
	}
	if wire.StripANSI != nil {
		cfg.StripANSI = *wire.StripANSI
	}
	if wire.SentinelStart != nil && *wire.SentinelStart != "" {
		cfg.SentinelStart = *wire.SentinelStart
	}
	if wire.SentinelEnd != nil && *wire.SentinelEnd != "" {
		cfg.SentinelEnd = *wire.SentinelEnd
	}
	*c = cfg
	return nil
}

// MarshalJSON writes a disabled capture as false
func (c CaptureConfig) MarshalJSON() ([]byte, error) {
	if !c.Enabled() {
		return []byte("false"), nil
	}
	type plain CaptureConfig
	return sonic.Marshal(plain(c))
}

// TermConfig describes one terminal session. It is created by the UI, sent
// with terminal-ready, and bound to the owning UI session by Pid.
type TermConfig struct {
	Shell       ShellSpec         `json:"shell"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Cwd         string            `json:"cwd,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	PromptID    string            `json:"promptId,omitempty"`
	Pid         int               `json:"pid"`
	CleanPath   bool              `json:"cleanPath,omitempty"`
	CloseOnExit bool              `json:"closeOnExit"`
	Capture     CaptureConfig     `json:"capture"`
}

// UnmarshalJSON applies defaults for fields whose absence is meaningful:
// closeOnExit defaults to true and an absent capture captures nothing.
func (t *TermConfig) UnmarshalJSON(data []byte) error {
	type plain TermConfig
	cfg := plain{Capture: CaptureConfig{Mode: CaptureNone}}
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return err
	}

	var flags struct {
		CloseOnExit *bool `json:"closeOnExit"`
	}
	if err := sonic.Unmarshal(data, &flags); err != nil {
		return err
	}

	*t = TermConfig(cfg)
	t.CloseOnExit = flags.CloseOnExit == nil || *flags.CloseOnExit
	return nil
}

// EnvValue returns the value of key in the session environment
func (t TermConfig) EnvValue(key string) string {
	if t.Env == nil {
		return ""
	}
	return t.Env[key]
}

// DecodeTermConfig decodes a terminal-ready or terminal-exit payload
func DecodeTermConfig(payload []byte) (TermConfig, error) {
	var cfg TermConfig
	if err := sonic.Unmarshal(payload, &cfg); err != nil {
		return TermConfig{}, fmt.Errorf("invalid term config: %w", err)
	}
	return cfg, nil
}
