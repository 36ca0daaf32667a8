package session

import (
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/aggregator"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/procwatch"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/transcript"
	"go.uber.org/zap"
)

// ErrNotAttached is returned for input or resize before the PTY is attached
// or after teardown
var ErrNotAttached = errors.New("terminal session is not attached")

// Timing defaults
const (
	DefaultFlushInterval = 5 * time.Millisecond
	DefaultExitDebounce  = 100 * time.Millisecond
	DefaultSettleDelay   = 300 * time.Millisecond
)

// State is the lifecycle position of an Orchestrator
type State int

const (
	AwaitingReady State = iota
	Attached
	Exited
	Killed
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingReady:
		return "awaiting-ready"
	case Attached:
		return "attached"
	case Exited:
		return "exited"
	case Killed:
		return "killed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// RemovalSource announces that the owning UI process went away
type RemovalSource interface {
	Subscribe(pid int) (<-chan procwatch.Removed, func())
}

// Options configures an Orchestrator
type Options struct {
	// OwnerPid identifies the UI session; signals for other pids are ignored
	OwnerPid int
	Pool     *pool.Pool
	Resolver *shell.Resolver
	Channel  ipc.Channel
	Removals RemovalSource
	Logger   *zap.Logger
	Metrics  *monitoring.Metrics

	FlushInterval time.Duration
	ExitDebounce  time.Duration
	SettleDelay   time.Duration
}

// Orchestrator runs a single terminal session
type Orchestrator struct {
	ownerPid      int
	pool          *pool.Pool
	resolver      *shell.Resolver
	channel       ipc.Channel
	removals      RemovalSource
	logger        *zap.Logger
	metrics       *monitoring.Metrics
	flushInterval time.Duration
	exitDebounce  time.Duration
	settleDelay   time.Duration

	mu            sync.Mutex
	state         State
	cfg           ipc.TermConfig
	pty           *pool.Session
	agg           *aggregator.Aggregator
	builder       *transcript.Builder
	unsubscribe   func()
	cancelRemoval func()
	tornDown      bool

	settleMu    sync.Mutex
	settleTimer *time.Timer

	exitMu   sync.Mutex
	lastExit time.Time
}

// New creates an orchestrator awaiting the ready signal of opts.OwnerPid
func New(opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Resolver == nil {
		opts.Resolver = shell.NewResolver()
	}
	if opts.Channel == nil {
		opts.Channel = ipc.ChannelFunc(func(ipc.Message) error { return nil })
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.ExitDebounce <= 0 {
		opts.ExitDebounce = DefaultExitDebounce
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = DefaultSettleDelay
	}

	return &Orchestrator{
		ownerPid:      opts.OwnerPid,
		pool:          opts.Pool,
		resolver:      opts.Resolver,
		channel:       opts.Channel,
		removals:      opts.Removals,
		logger:        opts.Logger.With(zap.Int("owner_pid", opts.OwnerPid)),
		metrics:       opts.Metrics,
		flushInterval: opts.FlushInterval,
		exitDebounce:  opts.ExitDebounce,
		settleDelay:   opts.SettleDelay,
	}
}

// State returns the current lifecycle state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Pid returns the attached PTY pid, or 0
func (o *Orchestrator) Pid() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pty == nil {
		return 0
	}
	return o.pty.Pid()
}

// HandleReady attaches a PTY for cfg. Only the first ready signal for the
// owner pid has an effect. A spawn failure is reported to the UI as
// terminal-error and the session moves to Failed.
func (o *Orchestrator) HandleReady(cfg ipc.TermConfig) error {
	if cfg.Pid != o.ownerPid {
		o.logger.Debug("Ignoring ready signal for another session", zap.Int("pid", cfg.Pid))
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != AwaitingReady {
		return nil
	}

	shellPath, args := o.resolver.ShellConfig(&cfg, o.resolver.DefaultShell())
	opts := o.resolver.PtyOptions(cfg)

	pty, err := o.pool.GetIdlePty(shellPath, args, opts, &cfg)
	if err != nil {
		o.logger.Error("Failed to start terminal",
			zap.String("shell", shellPath),
			zap.Strings("args", args),
			zap.String("cwd", opts.Dir),
			zap.Error(err))
		o.state = Failed
		o.send(ipc.TerminalError, ipc.Error{Pid: o.ownerPid, Message: err.Error()})
		o.teardownLocked()
		return err
	}

	o.cfg = cfg
	o.pty = pty
	o.state = Attached
	o.metrics.IncSessionsActive()

	o.agg = aggregator.New(aggregator.Options{
		Binary:        opts.Binary,
		FlushInterval: o.flushInterval,
		OnFlush:       o.sendOutput,
		Logger:        o.logger,
	})
	o.builder = transcript.New(transcript.Options{
		Mode:          transcript.Mode(cfg.Capture.Mode),
		TailLines:     cfg.Capture.TailLines,
		StripANSI:     cfg.Capture.StripANSI,
		SentinelStart: cfg.Capture.SentinelStart,
		SentinelEnd:   cfg.Capture.SentinelEnd,
	})

	o.logger.Info("Terminal attached",
		zap.Int("pid", pty.Pid()),
		zap.String("shell", shellPath),
		zap.Strings("args", args),
		zap.String("cwd", opts.Dir),
		zap.String("mode", cfg.Capture.Mode))

	o.send(ipc.PtyReady, ipc.Ready{Pid: pty.Pid()})

	if cfg.Command != "" {
		o.armSettle()
	}

	agg, builder := o.agg, o.builder
	o.unsubscribe = pty.Subscribe(pool.Subscriber{
		Replay: func(chunks [][]byte) {
			o.replay(opts.Binary, chunks)
		},
		Data: func(chunk []byte) {
			agg.Push(chunk)
			builder.PushBytes(chunk)
			o.resetSettle()
		},
		Exit: o.handleProcessExit,
	})

	if o.removals != nil {
		removed, cancel := o.removals.Subscribe(o.ownerPid)
		o.cancelRemoval = cancel
		go o.watchRemoval(removed)
	}

	return nil
}

// HandleInput writes keystrokes to the PTY as-is. The terminal widget sends
// Enter itself, so no line ending is added; only injected commands get one.
func (o *Orchestrator) HandleInput(in ipc.Input) error {
	if in.Pid != o.ownerPid {
		return nil
	}

	pty := o.attached()
	if pty == nil {
		return ErrNotAttached
	}

	if err := pty.WriteString(in.Data); err != nil {
		o.logger.Warn("Failed to write terminal input", zap.Int("pid", pty.Pid()), zap.Error(err))
	}
	return nil
}

// HandleResize resizes the PTY
func (o *Orchestrator) HandleResize(r ipc.Resize) error {
	pty := o.attached()
	if pty == nil {
		return ErrNotAttached
	}

	if err := pty.Resize(r.Cols, r.Rows); err != nil {
		o.logger.Warn("Failed to resize terminal",
			zap.Int("pid", pty.Pid()),
			zap.Int("cols", r.Cols),
			zap.Int("rows", r.Rows),
			zap.Error(err))
		return err
	}
	return nil
}

// HandleExit is the UI closing the terminal: the capture is emitted with
// exit code 0, input focus is handed back and the session is torn down.
func (o *Orchestrator) HandleExit(cfg ipc.TermConfig) {
	if cfg.Pid != o.ownerPid {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Attached {
		return
	}

	o.emitCapture(0, "explicit")
	o.send(ipc.TriggerInputFocus, true)
	o.state = Killed
	o.teardownLocked()
}

// HandleKill tears the session down if pid is its PTY
func (o *Orchestrator) HandleKill(pid int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pty == nil || o.pty.Pid() != pid {
		return
	}

	o.logger.Info("Terminal killed", zap.Int("pid", pid))
	o.state = Killed
	o.teardownLocked()
}

// Teardown releases the PTY and every timer and subscription. It is safe to
// call any number of times.
func (o *Orchestrator) Teardown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state == AwaitingReady || o.state == Attached {
		o.state = Killed
	}
	o.teardownLocked()
}

func (o *Orchestrator) attached() *pool.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Attached {
		return nil
	}
	return o.pty
}

// handleProcessExit reacts to the first exit signal and drops duplicates
// arriving within the debounce window
func (o *Orchestrator) handleProcessExit(code int) {
	o.exitMu.Lock()
	now := time.Now()
	if !o.lastExit.IsZero() && now.Sub(o.lastExit) < o.exitDebounce {
		o.exitMu.Unlock()
		return
	}
	o.lastExit = now
	o.exitMu.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Attached {
		return
	}

	pid := o.pty.Pid()
	if !o.cfg.CloseOnExit {
		o.logger.Info("Terminal process exited; keeping session open",
			zap.Int("pid", pid),
			zap.Int("exit_code", code))
		return
	}

	o.logger.Info("Terminal process exited", zap.Int("pid", pid), zap.Int("exit_code", code))
	o.emitCapture(code, "exit")
	o.state = Exited
	o.teardownLocked()
}

func (o *Orchestrator) watchRemoval(removed <-chan procwatch.Removed) {
	r, ok := <-removed
	if !ok {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != Attached {
		return
	}
	o.logger.Info("Owner process removed", zap.Int("pid", r.Pid))
	o.state = Killed
	o.teardownLocked()
}

// emitCapture flushes pending output, then sends the transcript
func (o *Orchestrator) emitCapture(code int, reason string) {
	if err := o.agg.FlushNow(); err != nil {
		o.logger.Warn("Failed to flush terminal output", zap.Error(err))
	}

	o.send(ipc.TerminalCaptureReady, ipc.CaptureReady{
		Pid:      o.ownerPid,
		Text:     o.builder.Result(),
		ExitCode: code,
	})
	o.metrics.RecordCapture(string(o.builder.Mode()), reason)
}

func (o *Orchestrator) teardownLocked() {
	if o.tornDown {
		return
	}
	o.tornDown = true

	o.stopSettle()
	if o.unsubscribe != nil {
		o.unsubscribe()
		o.unsubscribe = nil
	}
	if o.cancelRemoval != nil {
		o.cancelRemoval()
		o.cancelRemoval = nil
	}
	if o.agg != nil {
		if err := o.agg.Dispose(); err != nil {
			o.logger.Warn("Failed to flush terminal output", zap.Error(err))
		}
	}
	if o.pty != nil {
		o.pool.KillPty(o.pty.Pid())
		o.metrics.DecSessionsActive()
		o.pty = nil
	}

	o.logger.Debug("Terminal torn down", zap.Stringer("state", o.state))
}

func (o *Orchestrator) replay(binary bool, chunks [][]byte) {
	var data []byte
	for _, c := range chunks {
		data = append(data, c...)
	}
	if len(data) == 0 {
		return
	}

	out := ipc.Output{Binary: binary}
	if binary {
		out.Data = data
	} else {
		out.Text = string(data)
	}
	o.metrics.RecordFlush(len(data))
	o.send(ipc.TerminalOutput, out)
}

func (o *Orchestrator) sendOutput(p aggregator.Payload) error {
	o.metrics.RecordFlush(p.Len())
	return o.channel.Send(ipc.Message{
		Type:    ipc.TerminalOutput,
		Payload: ipc.Output{Binary: p.Binary, Data: p.Data, Text: p.Text},
	})
}

func (o *Orchestrator) send(t ipc.MessageType, payload any) {
	if err := o.channel.Send(ipc.Message{Type: t, Payload: payload}); err != nil {
		o.logger.Warn("Failed to send message", zap.String("type", string(t)), zap.Error(err))
	}
}
