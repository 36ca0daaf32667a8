// Package aggregator batches PTY output so the UI is notified at a bounded
// rate instead of once per read.
package aggregator

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Payload is one flushed batch. Data is set in binary mode, Text otherwise.
type Payload struct {
	Binary bool
	Data   []byte
	Text   string
}

// Len returns the payload size in bytes
func (p Payload) Len() int {
	if p.Binary {
		return len(p.Data)
	}
	return len(p.Text)
}

// Options configures an Aggregator
type Options struct {
	Binary        bool
	FlushInterval time.Duration
	OnFlush       func(Payload) error
	Logger        *zap.Logger
}

// Aggregator accumulates output chunks and flushes them on the trailing edge
// of FlushInterval. Flushed payloads are the exact concatenation of pushed
// chunks in push order.
type Aggregator struct {
	binary   bool
	interval time.Duration
	onFlush  func(Payload) error
	logger   *zap.Logger

	// flushMu serializes deliveries so batches reach OnFlush in order
	flushMu sync.Mutex

	mu       sync.Mutex
	chunks   [][]byte
	size     int
	text     strings.Builder
	timer    *time.Timer
	gen      uint64 // bumped whenever the timer is re-armed or cancelled
	disposed bool
}

// New creates an Aggregator
func New(opts Options) *Aggregator {
	interval := opts.FlushInterval
	if interval < 0 {
		interval = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onFlush := opts.OnFlush
	if onFlush == nil {
		onFlush = func(Payload) error { return nil }
	}
	return &Aggregator{
		binary:   opts.Binary,
		interval: interval,
		onFlush:  onFlush,
		logger:   logger,
	}
}

// Push appends a chunk and re-arms the flush timer
func (a *Aggregator) Push(chunk []byte) {
	if len(chunk) == 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}

	if a.binary {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		a.chunks = append(a.chunks, buf)
		a.size += len(buf)
	} else {
		a.text.Write(chunk)
	}
	a.scheduleLocked()
}

// PushString appends a string chunk
func (a *Aggregator) PushString(chunk string) {
	a.Push([]byte(chunk))
}

func (a *Aggregator) scheduleLocked() {
	if a.timer != nil {
		a.timer.Stop()
	}
	a.gen++
	gen := a.gen
	a.timer = time.AfterFunc(a.interval, func() { a.flushFromTimer(gen) })
}

// flushFromTimer flushes unless the timer that fired has since been
// superseded. Stop cannot recall a callback that already started.
func (a *Aggregator) flushFromTimer(gen uint64) {
	a.mu.Lock()
	stale := gen != a.gen
	a.mu.Unlock()
	if stale {
		return
	}

	if err := a.FlushNow(); err != nil {
		a.logger.Warn("Output flush failed", zap.Error(err))
	}
}

// FlushNow delivers pending output immediately. It is a no-op when nothing
// is pending. Accumulation state is reset before OnFlush runs, so a failing
// callback loses only its own batch.
func (a *Aggregator) FlushNow() error {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	payload, ok := a.take()
	if !ok {
		return nil
	}
	return a.onFlush(payload)
}

// take detaches pending output and resets the buffers
func (a *Aggregator) take() (Payload, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.gen++

	if a.binary {
		if a.size == 0 {
			return Payload{}, false
		}
		data := bytes.Join(a.chunks, nil)
		a.chunks = nil
		a.size = 0
		return Payload{Binary: true, Data: data}, true
	}

	if a.text.Len() == 0 {
		return Payload{}, false
	}
	text := a.text.String()
	a.text.Reset()
	return Payload{Text: text}, true
}

// Pending returns the number of buffered bytes
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.binary {
		return a.size
	}
	return a.text.Len()
}

// Dispose cancels the timer and flushes whatever is left. Later pushes are
// ignored. Calling Dispose more than once is safe.
func (a *Aggregator) Dispose() error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return nil
	}
	a.disposed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	return a.FlushNow()
}
