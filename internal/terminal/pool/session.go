package pool

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"go.uber.org/zap"
)

// ErrSessionExited is returned when writing to a process that has exited
var ErrSessionExited = errors.New("pty session has exited")

// drainTimeout bounds how long an exited process may keep its output open
const drainTimeout = 250 * time.Millisecond

const readBufferSize = 32 * 1024

// maxBufferedBytes bounds output held for a session nobody has claimed yet.
// The oldest chunks are dropped first.
const maxBufferedBytes = 256 * 1024

// Subscriber receives a session's output. Callbacks run on the session's
// reader goroutine and are never invoked concurrently.
type Subscriber struct {
	// Replay receives output produced before the subscription, once
	Replay func(chunks [][]byte)
	Data   func(chunk []byte)
	Exit   func(exitCode int)
}

// Info describes a pool-owned process
type Info struct {
	Pid       int       `json:"pid"`
	Shell     string    `json:"shell"`
	Args      []string  `json:"args"`
	Cwd       string    `json:"cwd"`
	StartedAt time.Time `json:"startedAt"`
	Idle      bool      `json:"idle"`
}

// Session is a running PTY process owned by the pool
type Session struct {
	proc      Process
	pid       int
	shell     string
	args      []string
	cwd       string
	startedAt time.Time
	logger    *zap.Logger

	// deliverMu orders data, replay and exit callbacks
	deliverMu sync.Mutex

	mu           sync.Mutex
	sub          *Subscriber
	buffered     [][]byte
	bufferedSize int
	exited       bool
	exitCode     int

	done     chan struct{}
	readDone chan struct{}
	onExit   func(*Session, int)
}

func newSession(proc Process, shellPath string, args []string, opts shell.SpawnOptions, logger *zap.Logger) *Session {
	return &Session{
		proc:      proc,
		pid:       proc.Pid(),
		shell:     shellPath,
		args:      append([]string(nil), args...),
		cwd:       opts.Dir,
		startedAt: time.Now(),
		logger:    logger,
		done:      make(chan struct{}),
		readDone:  make(chan struct{}),
	}
}

func (s *Session) start() {
	go s.readLoop()
	go s.waitLoop()
}

// Pid returns the process id
func (s *Session) Pid() int { return s.pid }

// Shell returns the program the process was started with
func (s *Session) Shell() string { return s.shell }

// Args returns a copy of the process arguments
func (s *Session) Args() []string { return append([]string(nil), s.args...) }

// Cwd returns the directory the process was started in
func (s *Session) Cwd() string { return s.cwd }

// Done is closed once the process has exited and its output is drained
func (s *Session) Done() <-chan struct{} { return s.done }

// Exited reports whether the process has exited
func (s *Session) Exited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exited
}

// ExitCode returns the exit code once Done is closed
func (s *Session) ExitCode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exitCode
}

// Write sends input to the process
func (s *Session) Write(data []byte) error {
	if s.Exited() {
		return ErrSessionExited
	}
	_, err := s.proc.Write(data)
	return err
}

// WriteString sends input to the process
func (s *Session) WriteString(data string) error {
	return s.Write([]byte(data))
}

// Resize changes the terminal dimensions
func (s *Session) Resize(cols, rows int) error {
	if s.Exited() {
		return ErrSessionExited
	}
	return s.proc.Resize(cols, rows)
}

// Subscribe attaches sub to the session, replacing any previous subscriber.
// Output buffered while nobody was subscribed is handed to sub.Replay first.
// If the process has already exited, sub.Exit is invoked asynchronously.
// The returned cancel func detaches sub and is safe to call more than once.
func (s *Session) Subscribe(sub Subscriber) (cancel func()) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	replay := s.buffered
	s.buffered = nil
	s.bufferedSize = 0
	handle := &sub
	s.sub = handle
	exited, code := s.exited, s.exitCode
	s.mu.Unlock()

	if len(replay) > 0 && sub.Replay != nil {
		sub.Replay(replay)
	}
	if exited && sub.Exit != nil {
		go sub.Exit(code)
	}

	return func() {
		s.mu.Lock()
		if s.sub == handle {
			s.sub = nil
		}
		s.mu.Unlock()
	}
}

func (s *Session) info(idle bool) Info {
	return Info{
		Pid:       s.pid,
		Shell:     s.shell,
		Args:      s.Args(),
		Cwd:       s.cwd,
		StartedAt: s.startedAt,
		Idle:      idle,
	}
}

func (s *Session) kill() error {
	return s.proc.Kill()
}

// readLoop continuously reads from the PTY and delivers output
func (s *Session) readLoop() {
	defer close(s.readDone)

	buf := make([]byte, readBufferSize)
	for {
		n, err := s.proc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			s.deliver(chunk)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("PTY read ended", zap.Int("pid", s.pid), zap.Error(err))
			}
			return
		}
	}
}

func (s *Session) deliver(chunk []byte) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	sub := s.sub
	if sub == nil {
		s.bufferLocked(chunk)
	}
	s.mu.Unlock()

	if sub != nil && sub.Data != nil {
		sub.Data(chunk)
	}
}

func (s *Session) bufferLocked(chunk []byte) {
	s.buffered = append(s.buffered, chunk)
	s.bufferedSize += len(chunk)

	dropped := 0
	for s.bufferedSize > maxBufferedBytes && len(s.buffered) > 1 {
		s.bufferedSize -= len(s.buffered[0])
		s.buffered[0] = nil
		s.buffered = s.buffered[1:]
		dropped++
	}
	if dropped > 0 {
		s.logger.Debug("Dropped buffered PTY output", zap.Int("pid", s.pid), zap.Int("chunks", dropped))
	}
}

// waitLoop reaps the process, lets trailing output drain, then reports the exit
func (s *Session) waitLoop() {
	code, err := s.proc.Wait()
	if err != nil {
		s.logger.Debug("PTY wait failed", zap.Int("pid", s.pid), zap.Error(err))
	}

	timer := time.NewTimer(drainTimeout)
	select {
	case <-s.readDone:
	case <-timer.C:
		_ = s.proc.Close()
		timer.Reset(drainTimeout)
		select {
		case <-s.readDone:
		case <-timer.C:
			s.logger.Warn("PTY reader did not stop after close", zap.Int("pid", s.pid))
		}
	}
	timer.Stop()
	_ = s.proc.Close()

	s.finish(code)
}

func (s *Session) finish(code int) {
	s.deliverMu.Lock()
	s.mu.Lock()
	s.exited = true
	s.exitCode = code
	sub := s.sub
	s.mu.Unlock()
	close(s.done)

	if sub != nil && sub.Exit != nil {
		sub.Exit(code)
	}
	s.deliverMu.Unlock()

	if s.onExit != nil {
		s.onExit(s, code)
	}
}
