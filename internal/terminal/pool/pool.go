package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"go.uber.org/zap"
)

var (
	// ErrPoolClosed is returned once Destroy has been called
	ErrPoolClosed = errors.New("pty pool is closed")
	// ErrSpawn wraps failures to start a PTY process
	ErrSpawn = errors.New("failed to spawn pty")
)

// DefaultGraceDelay is how long Destroy waits before killing live processes
const DefaultGraceDelay = 500 * time.Millisecond

// Options configures a Pool
type Options struct {
	Spawner    Spawner
	Resolver   *shell.Resolver
	GraceDelay time.Duration
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
	// Breaker guards background pre-warming; nil uses a default breaker
	Breaker *resilience.Breaker
}

type idleSlot struct {
	session *Session
	shell   string
	args    []string
	cwd     string
}

// Pool spawns PTY processes and keeps one pre-warmed login shell
type Pool struct {
	spawner  Spawner
	resolver *shell.Resolver
	grace    time.Duration
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	breaker  *resilience.Breaker

	mu        sync.Mutex
	live      map[int]*Session
	idle      *idleSlot
	preparing bool
	closed    bool
}

// New creates a pool
func New(opts Options) *Pool {
	if opts.Spawner == nil {
		opts.Spawner = PTYSpawner{}
	}
	if opts.Resolver == nil {
		opts.Resolver = shell.NewResolver()
	}
	if opts.GraceDelay < 0 {
		opts.GraceDelay = 0
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Breaker == nil {
		logger := opts.Logger
		opts.Breaker = resilience.New("prewarm", resilience.Settings{
			OnStateChange: func(name string, from, to resilience.State) {
				logger.Warn("Pre-warm breaker changed state",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		})
	}

	return &Pool{
		spawner:  opts.Spawner,
		resolver: opts.Resolver,
		grace:    opts.GraceDelay,
		logger:   opts.Logger,
		metrics:  opts.Metrics,
		breaker:  opts.Breaker,
		live:     make(map[int]*Session),
	}
}

// CreatePty spawns a process and registers it as live
func (p *Pool) CreatePty(shellPath string, args []string, opts shell.SpawnOptions) (*Session, error) {
	return p.create("session", shellPath, args, opts)
}

func (p *Pool) create(kind, shellPath string, args []string, opts shell.SpawnOptions) (*Session, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	opts.HideWindow = true
	proc, err := p.spawner.Spawn(shellPath, args, opts)
	if err != nil {
		p.metrics.RecordSpawnError()
		p.logger.Error("Failed to spawn PTY",
			zap.String("shell", shellPath),
			zap.Strings("args", args),
			zap.String("cwd", opts.Dir),
			zap.Error(err))
		return nil, fmt.Errorf("%w %s: %w", ErrSpawn, shellPath, err)
	}

	s := newSession(proc, shellPath, args, opts, p.logger)
	s.onExit = p.forget
	s.start()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.kill(s)
		return nil, ErrPoolClosed
	}
	p.live[s.pid] = s
	p.metrics.SetPtyLive(len(p.live))
	p.mu.Unlock()

	p.metrics.RecordSpawn(kind)
	p.logger.Info("PTY spawned",
		zap.Int("pid", s.pid),
		zap.String("kind", kind),
		zap.String("shell", shellPath),
		zap.Strings("args", args),
		zap.String("cwd", opts.Dir))

	return s, nil
}

// PrepareNextIdlePty fills the idle slot with a default login shell.
// It does nothing if the slot is already filled or the pool is closed, and
// returns resilience.ErrCircuitOpen while repeated spawn failures back off.
func (p *Pool) PrepareNextIdlePty() error {
	p.mu.Lock()
	if p.closed || p.idle != nil || p.preparing {
		p.mu.Unlock()
		return nil
	}
	p.preparing = true
	p.mu.Unlock()

	shellPath := p.resolver.DefaultShell()
	args := p.resolver.LoginArgs()
	opts := p.resolver.PtyOptions(ipc.TermConfig{})

	var s *Session
	err := p.breaker.Do(func() error {
		var err error
		s, err = p.create("idle", shellPath, args, opts)
		if errors.Is(err, ErrPoolClosed) {
			return nil
		}
		return err
	})

	p.mu.Lock()
	defer p.mu.Unlock()
	p.preparing = false
	if err != nil {
		return err
	}
	if s == nil || p.closed || s.Exited() {
		return nil
	}

	p.idle = &idleSlot{session: s, shell: shellPath, args: args, cwd: opts.Dir}
	p.logger.Debug("Idle PTY ready", zap.Int("pid", s.pid))
	return nil
}

// GetIdlePty hands out the idle shell when shellPath and args match it,
// steering it to opts.Dir and typing cfg.Command (which is then cleared).
// Otherwise a new process is spawned and the idle slot is left alone.
func (p *Pool) GetIdlePty(shellPath string, args []string, opts shell.SpawnOptions, cfg *ipc.TermConfig) (*Session, error) {
	p.mu.Lock()
	slot := p.idle
	if slot == nil || slot.shell != shellPath || !slices.Equal(slot.args, args) || slot.session.Exited() {
		p.mu.Unlock()
		p.metrics.RecordIdleHandoff(false)
		return p.CreatePty(shellPath, args, opts)
	}
	p.idle = nil
	p.mu.Unlock()

	p.metrics.RecordIdleHandoff(true)
	s := slot.session
	p.logger.Debug("Reusing idle PTY", zap.Int("pid", s.pid), zap.String("cwd", opts.Dir))

	if opts.Dir != "" && opts.Dir != slot.cwd {
		if err := s.WriteString(p.resolver.ChangeDirCommand(opts.Dir)); err != nil {
			p.logger.Warn("Failed to change idle PTY directory", zap.Int("pid", s.pid), zap.Error(err))
		}
	}
	if cfg != nil && cfg.Command != "" {
		if err := s.WriteString(cfg.Command + p.resolver.LineEnding()); err != nil {
			p.logger.Warn("Failed to send command to idle PTY", zap.Int("pid", s.pid), zap.Error(err))
		}
		cfg.Command = ""
	}

	go func() {
		if err := p.PrepareNextIdlePty(); err != nil {
			p.logger.Warn("Failed to prepare idle PTY", zap.Error(err))
		}
	}()

	return s, nil
}

// KillPty terminates the process with pid. Unknown pids and processes that
// already exited are ignored.
func (p *Pool) KillPty(pid int) {
	p.mu.Lock()
	s, ok := p.live[pid]
	if ok {
		p.removeLocked(s)
	}
	p.mu.Unlock()

	if ok {
		p.kill(s)
	}
}

// KillIdlePty terminates the idle process, if any
func (p *Pool) KillIdlePty() {
	p.mu.Lock()
	slot := p.idle
	if slot != nil {
		p.removeLocked(slot.session)
	}
	p.mu.Unlock()

	if slot != nil {
		p.kill(slot.session)
	}
}

// Destroy kills the idle process, waits the grace delay (or until ctx is
// done) so sessions can close themselves, then kills everything left.
func (p *Pool) Destroy(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	slot := p.idle
	if slot != nil {
		p.removeLocked(slot.session)
	}
	p.mu.Unlock()

	if slot != nil {
		p.kill(slot.session)
	}

	if p.grace > 0 {
		timer := time.NewTimer(p.grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	p.mu.Lock()
	remaining := make([]*Session, 0, len(p.live))
	for _, s := range p.live {
		remaining = append(remaining, s)
	}
	p.live = make(map[int]*Session)
	p.metrics.SetPtyLive(0)
	p.mu.Unlock()

	for _, s := range remaining {
		p.kill(s)
	}

	p.logger.Info("PTY pool destroyed", zap.Int("killed", len(remaining)))
	return nil
}

// Live returns the sorted pids of all live processes, idle included
func (p *Pool) Live() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	pids := make([]int, 0, len(p.live))
	for pid := range p.live {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// IdlePid returns the pid of the idle process
func (p *Pool) IdlePid() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.idle == nil {
		return 0, false
	}
	return p.idle.session.pid, true
}

// List describes every live process, ordered by pid
func (p *Pool) List() []Info {
	p.mu.Lock()
	defer p.mu.Unlock()

	infos := make([]Info, 0, len(p.live))
	for _, s := range p.live {
		infos = append(infos, s.info(p.idle != nil && p.idle.session == s))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Pid < infos[j].Pid })
	return infos
}

// Closed reports whether Destroy has been called
func (p *Pool) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Pool) removeLocked(s *Session) {
	if p.live[s.pid] == s {
		delete(p.live, s.pid)
	}
	if p.idle != nil && p.idle.session == s {
		p.idle = nil
	}
	p.metrics.SetPtyLive(len(p.live))
}

func (p *Pool) kill(s *Session) {
	err := s.kill()
	switch {
	case err == nil:
		p.metrics.RecordKill("killed")
		p.logger.Debug("PTY killed", zap.Int("pid", s.pid))
	case errors.Is(err, os.ErrProcessDone):
		p.metrics.RecordKill("already_dead")
		p.logger.Debug("PTY already exited", zap.Int("pid", s.pid))
	default:
		p.metrics.RecordKill("error")
		p.logger.Warn("Failed to kill PTY", zap.Int("pid", s.pid), zap.Error(err))
	}
}

// forget drops a process that exited on its own
func (p *Pool) forget(s *Session, code int) {
	p.mu.Lock()
	p.removeLocked(s)
	p.mu.Unlock()

	p.logger.Info("PTY exited", zap.Int("pid", s.pid), zap.Int("exit_code", code))
}
