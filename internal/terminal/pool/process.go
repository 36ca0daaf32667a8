package pool

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"syscall"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"github.com/creack/pty"
)

// Process is a running pseudo-terminal child
type Process interface {
	Pid() int
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Resize(cols, rows int) error
	Kill() error
	// Wait blocks until the child exits and returns its exit code
	Wait() (int, error)
	Close() error
}

// Spawner starts pseudo-terminal processes
type Spawner interface {
	Spawn(shellPath string, args []string, opts shell.SpawnOptions) (Process, error)
}

// SpawnerFunc adapts a function to the Spawner interface
type SpawnerFunc func(shellPath string, args []string, opts shell.SpawnOptions) (Process, error)

// Spawn calls f
func (f SpawnerFunc) Spawn(shellPath string, args []string, opts shell.SpawnOptions) (Process, error) {
	return f(shellPath, args, opts)
}

// PTYSpawner spawns processes on a real pseudo-terminal
type PTYSpawner struct{}

// Spawn starts shellPath on a new PTY sized from opts
func (PTYSpawner) Spawn(shellPath string, args []string, opts shell.SpawnOptions) (Process, error) {
	cmd := exec.Command(shellPath, args...)
	cmd.Dir = opts.Dir
	cmd.Env = opts.Environ()

	ptmx, err := pty.StartWithSize(cmd, winsize(opts.Cols, opts.Rows))
	if err != nil {
		return nil, fmt.Errorf("failed to start PTY: %w", err)
	}

	return &ptyProcess{cmd: cmd, ptmx: ptmx}, nil
}

type ptyProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File
}

func (p *ptyProcess) Pid() int {
	return p.cmd.Process.Pid
}

// Read reports io.EOF once the child side of the terminal is gone
func (p *ptyProcess) Read(b []byte) (int, error) {
	n, err := p.ptmx.Read(b)
	if err != nil && (errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)) {
		err = io.EOF
	}
	return n, err
}

func (p *ptyProcess) Write(b []byte) (int, error) {
	return p.ptmx.Write(b)
}

func (p *ptyProcess) Resize(cols, rows int) error {
	return pty.Setsize(p.ptmx, winsize(cols, rows))
}

func (p *ptyProcess) Kill() error {
	return p.cmd.Process.Kill()
}

func (p *ptyProcess) Wait() (int, error) {
	err := p.cmd.Wait()
	if p.cmd.ProcessState == nil {
		return -1, err
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		err = nil
	}
	return p.cmd.ProcessState.ExitCode(), err
}

func (p *ptyProcess) Close() error {
	return p.ptmx.Close()
}

func winsize(cols, rows int) *pty.Winsize {
	if cols <= 0 {
		cols = shell.DefaultCols
	}
	if rows <= 0 {
		rows = shell.DefaultRows
	}
	return &pty.Winsize{Rows: uint16(min(rows, math.MaxUint16)), Cols: uint16(min(cols, math.MaxUint16))}
}
