package procwatch

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Removed) Removed {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(time.Second):
		t.Fatal("no removal received")
		return Removed{}
	}
}

func TestRemovePublishesOnce(t *testing.T) {
	w := New(Options{})
	w.Watch(42)

	ch, cancel := w.Subscribe(42)
	defer cancel()

	w.Remove(42)
	w.Remove(42)

	r := receive(t, ch)
	assert.Equal(t, 42, r.Pid)
	assert.False(t, r.At.IsZero())
	assert.False(t, w.Watched(42))

	select {
	case r, ok := <-ch:
		if ok {
			t.Fatalf("unexpected second removal %+v", r)
		}
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRemoveIsPerPid(t *testing.T) {
	w := New(Options{})
	w.Watch(1)
	w.Watch(2)

	one, cancelOne := w.Subscribe(1)
	defer cancelOne()
	two, cancelTwo := w.Subscribe(2)
	defer cancelTwo()

	w.Remove(2)
	assert.Equal(t, 2, receive(t, two).Pid)

	select {
	case <-one:
		t.Fatal("pid 1 should not be removed")
	case <-time.After(20 * time.Millisecond):
	}
	assert.True(t, w.Watched(1))
}

func TestRemoveUnwatchedIsIgnored(t *testing.T) {
	w := New(Options{})
	ch, cancel := w.Subscribe(7)
	defer cancel()

	w.Remove(7)
	w.Watch(8)
	w.Unwatch(8)
	w.Remove(8)

	select {
	case <-ch:
		t.Fatal("unwatched pid announced")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestCancelClosesChannel(t *testing.T) {
	w := New(Options{})
	ch, cancel := w.Subscribe(3)
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
}

type fakeProcs struct {
	mu    sync.Mutex
	alive map[int]bool
	err   map[int]error
}

func (f *fakeProcs) exists(_ context.Context, pid int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err[pid]; err != nil {
		return false, err
	}
	return f.alive[pid], nil
}

func (f *fakeProcs) kill(pid int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive[pid] = false
}

func TestPollRemovesDeadProcesses(t *testing.T) {
	procs := &fakeProcs{
		alive: map[int]bool{10: true, 11: true, 12: false},
		err:   map[int]error{12: errors.New("permission denied")},
	}
	w := New(Options{Exists: procs.exists})
	w.Watch(10)
	w.Watch(11)
	w.Watch(12)

	ch, cancel := w.Subscribe(11)
	defer cancel()

	w.Poll(context.Background())
	assert.True(t, w.Watched(11))

	procs.kill(11)
	w.Poll(context.Background())

	assert.Equal(t, 11, receive(t, ch).Pid)
	assert.True(t, w.Watched(10))
	assert.True(t, w.Watched(12), "lookup errors keep the pid watched")
}

func TestRunStopsOnCancel(t *testing.T) {
	procs := &fakeProcs{alive: map[int]bool{5: true}}
	w := New(Options{Interval: 5 * time.Millisecond, Exists: procs.exists})
	w.Watch(5)
	ch, cancelSub := w.Subscribe(5)
	defer cancelSub()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	procs.kill(5)
	assert.Equal(t, 5, receive(t, ch).Pid)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestOSExists(t *testing.T) {
	alive, err := osExists(context.Background(), os.Getpid())
	require.NoError(t, err)
	assert.True(t, alive)
}
