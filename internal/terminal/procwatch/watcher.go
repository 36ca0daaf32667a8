// Package procwatch announces the removal of UI processes that own terminal
// sessions. A process is removed either explicitly (its window closed) or
// when polling finds it no longer exists.
package procwatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	ps "github.com/simonfxr/pubsub"
	"go.uber.org/zap"
)

// DefaultInterval is how often watched pids are polled
const DefaultInterval = 2 * time.Second

// Removed is published once per watched pid when it goes away
type Removed struct {
	Pid int
	At  time.Time
}

// ExistsFunc reports whether pid is a running process
type ExistsFunc func(ctx context.Context, pid int) (bool, error)

// Options configures a Watcher
type Options struct {
	Interval time.Duration
	Exists   ExistsFunc
	Logger   *zap.Logger
}

// Watcher tracks owner processes and publishes their removal
type Watcher struct {
	bus      *ps.Bus
	interval time.Duration
	exists   ExistsFunc
	logger   *zap.Logger

	mu      sync.Mutex
	watched map[int]struct{}
}

// New creates a watcher
func New(opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Exists == nil {
		opts.Exists = osExists
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Watcher{
		bus:      ps.NewBus(),
		interval: opts.Interval,
		exists:   opts.Exists,
		logger:   opts.Logger,
		watched:  make(map[int]struct{}),
	}
}

func osExists(ctx context.Context, pid int) (bool, error) {
	return process.PidExistsWithContext(ctx, int32(pid))
}

func topic(pid int) string {
	return "process-removed." + strconv.Itoa(pid)
}

// Watch starts tracking pid
func (w *Watcher) Watch(pid int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watched[pid] = struct{}{}
}

// Unwatch stops tracking pid without announcing anything
func (w *Watcher) Unwatch(pid int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.watched, pid)
}

// Watched returns whether pid is tracked
func (w *Watcher) Watched(pid int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[pid]
	return ok
}

// Remove announces that pid is gone. Pids that are not watched are ignored.
func (w *Watcher) Remove(pid int) {
	w.mu.Lock()
	_, ok := w.watched[pid]
	delete(w.watched, pid)
	w.mu.Unlock()

	if !ok {
		return
	}

	w.logger.Debug("Process removed", zap.Int("pid", pid))
	w.bus.Publish(topic(pid), Removed{Pid: pid, At: time.Now()})
}

// Subscribe returns a channel that receives the removal of pid. The cancel
// func unsubscribes and closes the channel.
func (w *Watcher) Subscribe(pid int) (<-chan Removed, func()) {
	ch := make(chan Removed, 1)
	sub := w.bus.SubscribeChan(topic(pid), ch, ps.CloseOnUnsubscribe)

	var once sync.Once
	return ch, func() {
		once.Do(func() { w.bus.Unsubscribe(sub) })
	}
}

// Poll checks every watched pid once and removes the ones that are gone
func (w *Watcher) Poll(ctx context.Context) {
	w.mu.Lock()
	pids := make([]int, 0, len(w.watched))
	for pid := range w.watched {
		pids = append(pids, pid)
	}
	w.mu.Unlock()

	for _, pid := range pids {
		alive, err := w.exists(ctx, pid)
		if err != nil {
			w.logger.Debug("Process lookup failed", zap.Int("pid", pid), zap.Error(err))
			continue
		}
		if !alive {
			w.Remove(pid)
		}
	}
}

// Run polls until ctx is done
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}
