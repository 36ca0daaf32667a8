// Package ipc defines the message surface between a terminal UI and the
// terminal host.
//
// Messages are transport-agnostic: the WebSocket handler in internal/api/ws
// carries them as JSON envelopes, tests carry them through a recording
// channel.
//
// Message Types (UI → core):
//   - terminal-ready: TermConfig describing what to run
//   - terminal-input: keystrokes for the owning session
//   - terminal-resize: new PTY dimensions
//   - terminal-exit: UI closed the terminal explicitly
//   - terminal-kill: kill a PTY by pid
//
// Message Types (core → UI):
//   - terminal-output: batched PTY output, string or raw bytes
//   - pty-ready: a PTY is attached
//   - terminal-capture-ready: final transcript {pid, text, exitCode}
//   - trigger-input-focus: hand keyboard focus back to the prompt
//   - terminal-error: spawn failure or other displayable error
//
// Dynamic wire shapes (shell as string|bool, capture as bool|object) are
// normalized here so nothing downstream branches on JSON types.
package ipc
