/*
Package ws carries the terminal IPC surface over WebSocket.

Each connection is one terminal UI session: GET /terminal?pid=<owner pid>
upgrades the connection and creates an orchestrator bound to that pid.

Inbound frames are JSON envelopes:

	{"type": "terminal-ready", "payload": {"shell": true, "pid": 42, "capture": true}}
	{"type": "terminal-input", "payload": {"data": "ls\r", "pid": 42}}
	{"type": "terminal-resize", "payload": {"cols": 120, "rows": 40}}
	{"type": "terminal-exit", "payload": {"pid": 42}}
	{"type": "terminal-kill", "payload": 31337}

Outbound, raw PTY output is sent as binary frames; every other message is a
JSON text frame of the same envelope shape. Closing the socket removes the
owner pid, which tears the session down.
*/
package ws
