package pool_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/pool"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

func newPool(t *testing.T) (*pool.Pool, *testutil.FakeSpawner) {
	t.Helper()
	spawner := testutil.NewFakeSpawner()
	p := pool.New(pool.Options{
		Spawner:  spawner,
		Resolver: testutil.Resolver(),
	})
	t.Cleanup(func() { _ = p.Destroy(context.Background()) })
	return p, spawner
}

func TestPrepareNextIdlePty(t *testing.T) {
	p, spawner := newPool(t)

	require.NoError(t, p.PrepareNextIdlePty())
	require.NoError(t, p.PrepareNextIdlePty())

	calls := spawner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/bin/bash", calls[0].Shell)
	assert.Equal(t, []string{"-l"}, calls[0].Args)
	assert.Equal(t, "/home/tester", calls[0].Opts.Dir)
	assert.True(t, calls[0].Opts.HideWindow)

	pid, ok := p.IdlePid()
	require.True(t, ok)
	assert.Equal(t, []int{pid}, p.Live())
}

func TestGetIdlePtyReusesMatchingShell(t *testing.T) {
	p, spawner := newPool(t)
	require.NoError(t, p.PrepareNextIdlePty())
	idlePid, _ := p.IdlePid()

	cfg := ipc.TermConfig{Command: "make test"}
	opts := shell.SpawnOptions{Dir: "/srv/project"}
	s, err := p.GetIdlePty("/bin/bash", []string{"-l"}, opts, &cfg)
	require.NoError(t, err)

	assert.Equal(t, idlePid, s.Pid())
	assert.Empty(t, cfg.Command)
	assert.Equal(t, []string{"cd '/srv/project'\n", "make test\n"}, spawner.Process(idlePid).Writes())

	require.Eventually(t, func() bool {
		pid, ok := p.IdlePid()
		return ok && pid != idlePid
	}, waitFor, tick)
	assert.Equal(t, 2, spawner.Count())
}

func TestGetIdlePtySkipsChangeDirForSameDir(t *testing.T) {
	p, spawner := newPool(t)
	require.NoError(t, p.PrepareNextIdlePty())

	s, err := p.GetIdlePty("/bin/bash", []string{"-l"}, shell.SpawnOptions{Dir: "/home/tester"}, &ipc.TermConfig{})
	require.NoError(t, err)
	assert.Empty(t, spawner.Process(s.Pid()).Writes())
}

func TestGetIdlePtyMismatchSpawnsFresh(t *testing.T) {
	tests := []struct {
		name  string
		shell string
		args  []string
	}{
		{name: "different shell", shell: "/bin/zsh", args: []string{"-l"}},
		{name: "different args", shell: "/bin/bash", args: []string{"-c", "top"}},
		{name: "no args", shell: "/bin/bash", args: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, spawner := newPool(t)
			require.NoError(t, p.PrepareNextIdlePty())
			idlePid, _ := p.IdlePid()

			cfg := ipc.TermConfig{Command: "ls"}
			s, err := p.GetIdlePty(tt.shell, tt.args, shell.SpawnOptions{Dir: "/tmp"}, &cfg)
			require.NoError(t, err)

			assert.NotEqual(t, idlePid, s.Pid())
			assert.Equal(t, "ls", cfg.Command)
			assert.Equal(t, 2, spawner.Count())
			assert.Empty(t, spawner.Process(idlePid).Writes())

			pid, ok := p.IdlePid()
			assert.True(t, ok)
			assert.Equal(t, idlePid, pid)
		})
	}
}

func TestGetIdlePtyWithoutIdleSpawnsFresh(t *testing.T) {
	p, spawner := newPool(t)

	s, err := p.GetIdlePty("/bin/bash", []string{"-l"}, shell.SpawnOptions{}, &ipc.TermConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, spawner.Count())

	_, ok := p.IdlePid()
	assert.False(t, ok)
	assert.Equal(t, []int{s.Pid()}, p.Live())
}

func TestCreatePtySpawnError(t *testing.T) {
	p, spawner := newPool(t)
	cause := errors.New("no such file")
	spawner.SetErr(cause)

	_, err := p.CreatePty("/bin/missing", nil, shell.SpawnOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, pool.ErrSpawn)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, p.Live())
}

func TestPrepareNextIdlePtyBacksOff(t *testing.T) {
	now := time.Unix(0, 0)
	spawner := testutil.NewFakeSpawner()
	p := pool.New(pool.Options{
		Spawner:  spawner,
		Resolver: testutil.Resolver(),
		Breaker: resilience.New("prewarm", resilience.Settings{
			Threshold: 2,
			Cooldown:  time.Minute,
			Now:       func() time.Time { return now },
		}),
	})
	t.Cleanup(func() { _ = p.Destroy(context.Background()) })

	spawner.SetErr(errors.New("no such file"))
	assert.ErrorIs(t, p.PrepareNextIdlePty(), pool.ErrSpawn)
	assert.ErrorIs(t, p.PrepareNextIdlePty(), pool.ErrSpawn)
	assert.ErrorIs(t, p.PrepareNextIdlePty(), resilience.ErrCircuitOpen)
	assert.Len(t, spawner.Calls(), 2)

	// explicit spawns are not guarded
	spawner.SetErr(nil)
	_, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)
	_, ok := p.IdlePid()
	assert.False(t, ok)

	now = now.Add(time.Minute)
	require.NoError(t, p.PrepareNextIdlePty())
	_, ok = p.IdlePid()
	assert.True(t, ok)
}

func TestKillPtyIsIdempotent(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	p.KillPty(s.Pid())
	p.KillPty(s.Pid())
	p.KillPty(424242)

	assert.Equal(t, 1, spawner.Process(s.Pid()).Kills())
	assert.Empty(t, p.Live())
	select {
	case <-s.Done():
	case <-time.After(waitFor):
		t.Fatal("session did not finish after kill")
	}
}

func TestExitedProcessLeavesPool(t *testing.T) {
	p, spawner := newPool(t)
	require.NoError(t, p.PrepareNextIdlePty())
	idlePid, _ := p.IdlePid()

	spawner.Process(idlePid).Exit(0)

	require.Eventually(t, func() bool { return len(p.Live()) == 0 }, waitFor, tick)
	_, ok := p.IdlePid()
	assert.False(t, ok)

	p.KillPty(idlePid)
	assert.Equal(t, 0, spawner.Process(idlePid).Kills())
}

func TestKillIdlePty(t *testing.T) {
	p, spawner := newPool(t)
	require.NoError(t, p.PrepareNextIdlePty())
	idlePid, _ := p.IdlePid()

	p.KillIdlePty()
	p.KillIdlePty()

	assert.Equal(t, 1, spawner.Process(idlePid).Kills())
	_, ok := p.IdlePid()
	assert.False(t, ok)
}

func TestDestroy(t *testing.T) {
	spawner := testutil.NewFakeSpawner()
	p := pool.New(pool.Options{
		Spawner:    spawner,
		Resolver:   testutil.Resolver(),
		GraceDelay: 20 * time.Millisecond,
	})

	require.NoError(t, p.PrepareNextIdlePty())
	idlePid, _ := p.IdlePid()
	s, err := p.CreatePty("/bin/zsh", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, p.Destroy(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	assert.Equal(t, 1, spawner.Process(idlePid).Kills())
	assert.Equal(t, 1, spawner.Process(s.Pid()).Kills())
	assert.Empty(t, p.Live())
	assert.True(t, p.Closed())

	_, err = p.CreatePty("/bin/zsh", nil, shell.SpawnOptions{})
	assert.ErrorIs(t, err, pool.ErrPoolClosed)
	require.NoError(t, p.PrepareNextIdlePty())
	assert.Equal(t, 2, spawner.Count())

	require.NoError(t, p.Destroy(context.Background()))
}

func TestDestroyHonoursContext(t *testing.T) {
	spawner := testutil.NewFakeSpawner()
	p := pool.New(pool.Options{
		Spawner:    spawner,
		Resolver:   testutil.Resolver(),
		GraceDelay: time.Hour,
	})
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, p.Destroy(ctx))
	assert.Equal(t, 1, spawner.Process(s.Pid()).Kills())
}

func TestSessionReplaysBufferedOutput(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)
	proc := spawner.Process(s.Pid())

	proc.Emit("motd\n")
	proc.Emit("$ ")
	time.Sleep(20 * time.Millisecond)

	got := make(chan string, 8)
	replays := 0
	cancel := s.Subscribe(pool.Subscriber{
		Replay: func(chunks [][]byte) {
			replays++
			for _, c := range chunks {
				got <- string(c)
			}
		},
		Data: func(chunk []byte) { got <- string(chunk) },
	})
	defer cancel()
	proc.Emit("live")

	var all string
	require.Eventually(t, func() bool {
		for {
			select {
			case c := <-got:
				all += c
			default:
				return all == "motd\n$ live"
			}
		}
	}, waitFor, tick)
	assert.LessOrEqual(t, replays, 1)
}

func TestSessionExitDelivered(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	codes := make(chan int, 1)
	s.Subscribe(pool.Subscriber{Exit: func(code int) { codes <- code }})

	spawner.Process(s.Pid()).Exit(3)
	select {
	case code := <-codes:
		assert.Equal(t, 3, code)
	case <-time.After(waitFor):
		t.Fatal("exit not delivered")
	}
	assert.Equal(t, 3, s.ExitCode())
	assert.ErrorIs(t, s.Write([]byte("x")), pool.ErrSessionExited)
	assert.ErrorIs(t, s.Resize(10, 10), pool.ErrSessionExited)
}

func TestSubscribeAfterExit(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	proc := spawner.Process(s.Pid())
	proc.Emit("bye\n")
	proc.Exit(7)
	<-s.Done()

	var replay string
	codes := make(chan int, 1)
	s.Subscribe(pool.Subscriber{
		Replay: func(chunks [][]byte) { replay = string(chunks[0]) },
		Exit:   func(code int) { codes <- code },
	})

	assert.Equal(t, "bye\n", replay)
	select {
	case code := <-codes:
		assert.Equal(t, 7, code)
	case <-time.After(waitFor):
		t.Fatal("exit not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)
	proc := spawner.Process(s.Pid())

	first := make(chan string, 4)
	cancel := s.Subscribe(pool.Subscriber{Data: func(chunk []byte) { first <- string(chunk) }})
	cancel()
	cancel()

	proc.Emit("later")
	time.Sleep(20 * time.Millisecond)

	second := make(chan string, 4)
	again := s.Subscribe(pool.Subscriber{
		Replay: func(chunks [][]byte) {
			for _, c := range chunks {
				second <- string(c)
			}
		},
		Data: func(chunk []byte) { second <- string(chunk) },
	})
	defer again()

	select {
	case got := <-second:
		assert.Equal(t, "later", got)
	case <-time.After(waitFor):
		t.Fatal("output lost after unsubscribe")
	}
	assert.Empty(t, first)
}

func TestWriteAndResize(t *testing.T) {
	p, spawner := newPool(t)
	s, err := p.CreatePty("/bin/bash", nil, shell.SpawnOptions{})
	require.NoError(t, err)

	require.NoError(t, s.Write([]byte("ls\r")))
	require.NoError(t, s.Resize(120, 40))

	proc := spawner.Process(s.Pid())
	assert.Equal(t, []string{"ls\r"}, proc.Writes())
	assert.Equal(t, [][2]int{{120, 40}}, proc.Resizes())
}

func TestList(t *testing.T) {
	p, _ := newPool(t)
	require.NoError(t, p.PrepareNextIdlePty())
	s, err := p.CreatePty("/bin/zsh", []string{"-i"}, shell.SpawnOptions{Dir: "/tmp"})
	require.NoError(t, err)

	infos := p.List()
	require.Len(t, infos, 2)
	assert.True(t, infos[0].Idle)
	assert.False(t, infos[1].Idle)
	assert.Equal(t, s.Pid(), infos[1].Pid)
	assert.Equal(t, "/bin/zsh", infos[1].Shell)
	assert.Equal(t, []string{"-i"}, infos[1].Args)
	assert.Equal(t, "/tmp", infos[1].Cwd)
}
