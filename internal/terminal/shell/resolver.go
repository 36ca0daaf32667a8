package shell

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	sh "mvdan.cc/sh/v3/shell"
)

// ShellOverrideEnv lets a session environment pick the shell
const ShellOverrideEnv = "KIT_SHELL"

// TermName is the terminfo entry advertised to spawned programs
const TermName = "xterm-256color"

// Initial PTY dimensions
const (
	DefaultCols = 80
	DefaultRows = 24
)

// SpawnOptions describes how a PTY process is started
type SpawnOptions struct {
	Name       string
	Dir        string
	Env        map[string]string
	Cols       int
	Rows       int
	Binary     bool
	HideWindow bool
}

// Environ returns the environment as sorted KEY=VALUE pairs
func (o SpawnOptions) Environ() []string {
	env := make([]string, 0, len(o.Env))
	for k, v := range o.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return env
}

// Resolver picks shells, arguments and spawn options for sessions
type Resolver struct {
	goos    string
	getenv  func(string) string
	environ func() []string
	homeDir func() (string, error)
	program string
	version string
	cols    int
	rows    int
}

// Option configures a Resolver
type Option func(*Resolver)

// WithGOOS overrides the target operating system
func WithGOOS(goos string) Option {
	return func(r *Resolver) { r.goos = goos }
}

// WithEnv overrides the process environment lookups
func WithEnv(getenv func(string) string, environ func() []string) Option {
	return func(r *Resolver) {
		r.getenv = getenv
		r.environ = environ
	}
}

// WithHomeDir overrides the home directory lookup
func WithHomeDir(homeDir func() (string, error)) Option {
	return func(r *Resolver) { r.homeDir = homeDir }
}

// WithProgram sets TERM_PROGRAM and TERM_PROGRAM_VERSION
func WithProgram(name, version string) Option {
	return func(r *Resolver) {
		r.program = name
		r.version = version
	}
}

// WithSize sets the initial PTY dimensions
func WithSize(cols, rows int) Option {
	return func(r *Resolver) {
		r.cols = cols
		r.rows = rows
	}
}

// NewResolver creates a resolver bound to the current process
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		goos:    runtime.GOOS,
		getenv:  os.Getenv,
		environ: os.Environ,
		homeDir: os.UserHomeDir,
		program: "kit",
		version: "0.0.0",
		cols:    DefaultCols,
		rows:    DefaultRows,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Windows reports whether the resolver targets Windows
func (r *Resolver) Windows() bool {
	return r.goos == "windows"
}

// Binary reports whether PTY output is carried as raw bytes.
// Windows PTYs are carried as UTF-8 text.
func (r *Resolver) Binary() bool {
	return !r.Windows()
}

// LineEnding is appended to commands typed into the shell on the caller's behalf
func (r *Resolver) LineEnding() string {
	if r.Binary() {
		return "\n"
	}
	return "\r"
}

// ChangeDirCommand returns the line that moves an interactive shell to dir
func (r *Resolver) ChangeDirCommand(dir string) string {
	if r.Windows() {
		return `cd /d "` + dir + `"` + r.LineEnding()
	}
	return "cd '" + strings.ReplaceAll(dir, "'", `'\''`) + "'" + r.LineEnding()
}

// DefaultShell returns the platform login shell
func (r *Resolver) DefaultShell() string {
	switch r.goos {
	case "windows":
		if comspec := r.getenv("ComSpec"); comspec != "" {
			return comspec
		}
		return "cmd.exe"
	case "linux":
		if s := r.getenv("SHELL"); s != "" {
			return s
		}
		return "bash"
	default:
		if s := r.getenv("SHELL"); s != "" {
			return s
		}
		return "zsh"
	}
}

// LoginArgs returns the arguments that start a login shell
func (r *Resolver) LoginArgs() []string {
	if r.Windows() {
		return nil
	}
	return []string{"-l"}
}

// ShellConfig resolves the program and arguments for cfg. When the shell is
// disabled and a command is present the command itself becomes the program
// and cfg.Command is cleared.
func (r *Resolver) ShellConfig(cfg *ipc.TermConfig, defaultShell string) (string, []string) {
	override := cfg.EnvValue(ShellOverrideEnv)

	switch cfg.Shell.Kind {
	case ipc.ShellLogin:
		if override != "" {
			return override, r.LoginArgs()
		}
		return defaultShell, r.LoginArgs()

	case ipc.ShellDisabled:
		if fields := splitCommand(cfg.Command); len(fields) > 0 {
			cfg.Command = ""
			return fields[0], fields[1:]
		}
	}

	shellPath := cfg.Shell.Path
	if shellPath == "" {
		shellPath = override
	}
	if shellPath == "" {
		shellPath = defaultShell
	}

	if len(cfg.Args) > 0 {
		return shellPath, append([]string(nil), cfg.Args...)
	}
	return shellPath, r.LoginArgs()
}

// splitCommand tokenizes cfg.Command with shell quoting rules, falling back
// to whitespace splitting for input the shell parser rejects. Parameters and
// a leading ~ are kept literal: the command is exec'd without a shell, so
// nothing would expand them.
func splitCommand(command string) []string {
	command = strings.TrimSpace(command)
	if command == "" {
		return nil
	}

	fields, err := sh.Fields(command, literalParam)
	if err != nil || len(fields) == 0 {
		return strings.Fields(command)
	}
	return fields
}

// literalParam expands $NAME to itself. IFS and the home variables report
// unset so field splitting keeps its defaults and ~ is left alone.
func literalParam(name string) string {
	if name == "IFS" || name == "HOME" || name == "USERPROFILE" || strings.HasPrefix(name, "HOME ") {
		return ""
	}
	return "$" + name
}

// PtyOptions builds spawn options for cfg
func (r *Resolver) PtyOptions(cfg ipc.TermConfig) SpawnOptions {
	env := make(map[string]string)
	for _, kv := range r.environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			env[k] = v
		}
	}
	for k, v := range cfg.Env {
		env[k] = v
	}

	env["TERM"] = TermName
	env["COLORTERM"] = "truecolor"
	env["TERM_PROGRAM"] = r.program
	env["TERM_PROGRAM_VERSION"] = r.version

	if cfg.EnvValue("PATH") == "" {
		inherited := r.getenv("PATH")
		if r.Windows() && inherited == "" {
			inherited = r.getenv("Path")
		}
		if cfg.CleanPath {
			inherited = ""
		}
		path := r.searchPath(inherited)
		env["PATH"] = path
		if r.Windows() {
			env["Path"] = path
		}
	}

	return SpawnOptions{
		Name:   TermName,
		Dir:    r.workingDir(cfg.Cwd),
		Env:    env,
		Cols:   r.cols,
		Rows:   r.rows,
		Binary: r.Binary(),
	}
}

// searchPath returns the known-good PATH followed by any inherited entries
// not already present.
func (r *Resolver) searchPath(inherited string) string {
	sep := ":"
	var dirs []string
	if r.Windows() {
		sep = ";"
		root := r.getenv("SystemRoot")
		if root == "" {
			root = `C:\Windows`
		}
		dirs = []string{root + `\System32`, root, root + `\System32\Wbem`, root + `\System32\WindowsPowerShell\v1.0`}
	} else {
		dirs = []string{"/usr/local/bin", "/usr/bin", "/bin", "/usr/sbin", "/sbin"}
		if r.goos == "darwin" {
			dirs = append([]string{"/opt/homebrew/bin"}, dirs...)
		}
	}

	seen := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		seen[d] = true
	}
	for _, d := range strings.Split(inherited, sep) {
		if d != "" && !seen[d] {
			seen[d] = true
			dirs = append(dirs, d)
		}
	}
	return strings.Join(dirs, sep)
}

// HomeDir returns the user's home directory
func (r *Resolver) HomeDir() string {
	if home, err := r.homeDir(); err == nil && home != "" {
		return home
	}
	if home := r.getenv("HOME"); home != "" {
		return home
	}
	if home := r.getenv("USERPROFILE"); home != "" {
		return home
	}
	if r.Windows() {
		return `C:\`
	}
	return "/"
}

// workingDir defaults cwd to home and expands a leading ~
func (r *Resolver) workingDir(cwd string) string {
	switch {
	case cwd == "" || cwd == "~":
		return r.HomeDir()
	case strings.HasPrefix(cwd, "~/") || strings.HasPrefix(cwd, `~\`):
		return filepath.Join(r.HomeDir(), cwd[2:])
	default:
		return cwd
	}
}
