/*
Package pool owns every pseudo-terminal process the host spawns.

# Overview

The pool keeps at most one pre-warmed login shell (the idle slot) so a new
terminal window can attach to a running shell instead of paying startup
latency. Sessions that need a different shell or arguments get a freshly
spawned process.

# Lifecycle

	p := pool.New(pool.Options{Spawner: pool.PTYSpawner{}, Resolver: resolver})
	_ = p.PrepareNextIdlePty()

	s, err := p.GetIdlePty(shellPath, args, opts, &cfg)
	cancel := s.Subscribe(pool.Subscriber{Data: onData, Exit: onExit})
	defer cancel()

	p.KillPty(s.Pid())
	_ = p.Destroy(ctx)

Output produced before anyone subscribes is buffered by the Session and
replayed to the first subscriber. Processes that exit on their own are
removed from the pool automatically.
*/
package pool
