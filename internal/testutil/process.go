package testutil

import (
	"io"
	"os"
	"sync"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
)

// FakeProcess is an in-memory pool.Process. Output is fed with Emit and the
// process ends with Exit or Kill.
type FakeProcess struct {
	pid  int
	out  chan []byte
	exit chan struct{}
	once sync.Once

	mu       sync.Mutex
	pending  []byte
	code     int
	exited   bool
	kills    int
	closes   int
	writes   []string
	resizes  [][2]int
	writeErr error
}

// NewFakeProcess creates a running fake with the given pid
func NewFakeProcess(pid int) *FakeProcess {
	return &FakeProcess{
		pid:  pid,
		out:  make(chan []byte, 1024),
		exit: make(chan struct{}),
	}
}

func (f *FakeProcess) Pid() int { return f.pid }

// Emit queues output for the reader
func (f *FakeProcess) Emit(data string) {
	f.out <- []byte(data)
}

// Exit ends the process with code. Only the first call has an effect.
func (f *FakeProcess) Exit(code int) {
	f.once.Do(func() {
		f.mu.Lock()
		f.code = code
		f.exited = true
		f.mu.Unlock()
		close(f.exit)
	})
}

// Read returns queued output, then io.EOF once the process has exited
func (f *FakeProcess) Read(p []byte) (int, error) {
	f.mu.Lock()
	if len(f.pending) > 0 {
		n := copy(p, f.pending)
		f.pending = f.pending[n:]
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()

	select {
	case chunk := <-f.out:
		return f.fill(p, chunk), nil
	case <-f.exit:
		select {
		case chunk := <-f.out:
			return f.fill(p, chunk), nil
		default:
			return 0, io.EOF
		}
	}
}

func (f *FakeProcess) fill(p, chunk []byte) int {
	n := copy(p, chunk)
	if n < len(chunk) {
		f.mu.Lock()
		f.pending = append(f.pending, chunk[n:]...)
		f.mu.Unlock()
	}
	return n
}

func (f *FakeProcess) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.writes = append(f.writes, string(p))
	return len(p), nil
}

func (f *FakeProcess) Resize(cols, rows int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resizes = append(f.resizes, [2]int{cols, rows})
	return nil
}

// Kill ends the process with code -1, or returns os.ErrProcessDone if it
// already exited
func (f *FakeProcess) Kill() error {
	f.mu.Lock()
	f.kills++
	exited := f.exited
	f.mu.Unlock()

	if exited {
		return os.ErrProcessDone
	}
	f.Exit(-1)
	return nil
}

func (f *FakeProcess) Wait() (int, error) {
	<-f.exit
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.code, nil
}

func (f *FakeProcess) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

// SetWriteErr makes subsequent writes fail with err
func (f *FakeProcess) SetWriteErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

// Writes returns everything written to the process
func (f *FakeProcess) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Resizes returns every (cols, rows) pair applied
func (f *FakeProcess) Resizes() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.resizes...)
}

// Kills returns how many times Kill was called
func (f *FakeProcess) Kills() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kills
}

// Exited reports whether the process has ended
func (f *FakeProcess) Exited() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exited
}

// SpawnCall records one Spawn invocation
type SpawnCall struct {
	Shell string
	Args  []string
	Opts  shell.SpawnOptions
}

// FakeSpawner hands out FakeProcesses with increasing pids starting at 1000
type FakeSpawner struct {
	mu    sync.Mutex
	next  int
	err   error
	calls []SpawnCall
	procs map[int]*FakeProcess
	order []*FakeProcess
}

// NewFakeSpawner creates a spawner
func NewFakeSpawner() *FakeSpawner {
	return &FakeSpawner{next: 1000, procs: make(map[int]*FakeProcess)}
}

var _ pool.Spawner = (*FakeSpawner)(nil)

// Spawn creates a FakeProcess, or fails with the configured error
func (s *FakeSpawner) Spawn(shellPath string, args []string, opts shell.SpawnOptions) (pool.Process, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, SpawnCall{Shell: shellPath, Args: append([]string(nil), args...), Opts: opts})
	if s.err != nil {
		return nil, s.err
	}

	proc := NewFakeProcess(s.next)
	s.next++
	s.procs[proc.pid] = proc
	s.order = append(s.order, proc)
	return proc, nil
}

// SetErr makes subsequent spawns fail with err
func (s *FakeSpawner) SetErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls returns every Spawn invocation in order
func (s *FakeSpawner) Calls() []SpawnCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SpawnCall(nil), s.calls...)
}

// Count returns the number of processes spawned
func (s *FakeSpawner) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Process returns the fake with pid
func (s *FakeSpawner) Process(pid int) *FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.procs[pid]
}

// Processes returns all fakes in spawn order
func (s *FakeSpawner) Processes() []*FakeProcess {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*FakeProcess(nil), s.order...)
}
