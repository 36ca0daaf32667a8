package session

import (
	"context"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitSignalsAreDebounced(t *testing.T) {
	const debounce = 50 * time.Millisecond

	channel := testutil.NewChannel()
	p := pool.New(pool.Options{Spawner: testutil.NewFakeSpawner(), Resolver: testutil.Resolver()})
	o := New(Options{
		OwnerPid:     9,
		Pool:         p,
		Resolver:     testutil.Resolver(),
		Channel:      channel,
		ExitDebounce: debounce,
	})
	t.Cleanup(func() {
		o.Teardown()
		_ = p.Destroy(context.Background())
	})

	require.NoError(t, o.HandleReady(ipc.TermConfig{
		Pid:     9,
		Shell:   ipc.ShellSpec{Kind: ipc.ShellPath, Path: "/bin/zsh"},
		Capture: ipc.CaptureConfig{Mode: ipc.CaptureFull},
	}))

	// first signal is handled: closeOnExit is off, so the session stays up
	o.handleProcessExit(1)
	assert.Equal(t, Attached, o.State())

	// a duplicate inside the window is dropped even though it would now close
	o.mu.Lock()
	o.cfg.CloseOnExit = true
	o.mu.Unlock()
	o.handleProcessExit(1)
	assert.Equal(t, Attached, o.State())
	assert.Empty(t, channel.OfType(ipc.TerminalCaptureReady))

	time.Sleep(debounce + 20*time.Millisecond)

	o.handleProcessExit(2)
	assert.Equal(t, Exited, o.State())

	captures := channel.OfType(ipc.TerminalCaptureReady)
	require.Len(t, captures, 1)
	assert.Equal(t, 2, captures[0].Payload.(ipc.CaptureReady).ExitCode)

	o.handleProcessExit(3)
	assert.Len(t, channel.OfType(ipc.TerminalCaptureReady), 1)
}
