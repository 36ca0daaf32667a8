/*
Package session binds one terminal UI to a pooled PTY.

An Orchestrator is created per UI session and driven by the IPC messages of
that UI. It moves through

	AwaitingReady -> Attached -> Exited | Killed

with Failed reserved for sessions whose process could not be spawned.

While attached, every output chunk is pushed to the output aggregator (the
UI stream) and then to the transcript builder (the capture result). When the
process exits, or the UI closes the terminal, the builder's result is sent
as terminal-capture-ready and the process is released back to the pool.
Teardown runs at most once regardless of which path triggers it.
*/
package session
