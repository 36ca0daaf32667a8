package ipc

import "encoding/json"

// MessageType names a message on the terminal channel
type MessageType string

const (
	TerminalReady  MessageType = "terminal-ready"
	TerminalInput  MessageType = "terminal-input"
	TerminalResize MessageType = "terminal-resize"
	TerminalExit   MessageType = "terminal-exit"
	TerminalKill   MessageType = "terminal-kill"

	TerminalOutput       MessageType = "terminal-output"
	PtyReady             MessageType = "pty-ready"
	TerminalCaptureReady MessageType = "terminal-capture-ready"
	TriggerInputFocus    MessageType = "trigger-input-focus"
	TerminalError        MessageType = "terminal-error"
)

// Message is an outbound message from the terminal host
type Message struct {
	Type    MessageType
	Payload any
}

// Channel delivers messages to the UI that owns a terminal session.
// Implementations must be safe for concurrent use.
type Channel interface {
	Send(msg Message) error
}

// ChannelFunc adapts a function to Channel
type ChannelFunc func(msg Message) error

// Send calls f(msg)
func (f ChannelFunc) Send(msg Message) error {
	return f(msg)
}

// Envelope is the wire form of a message
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Input carries keystrokes from the UI
type Input struct {
	Data string `json:"data"`
	Pid  int    `json:"pid"`
}

// Resize carries new terminal dimensions
type Resize struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Kill asks the host to kill the PTY with the given pid
type Kill struct {
	Pid int `json:"pid"`
}

// Output is batched PTY output. Exactly one of Data or Text is set,
// depending on Binary.
type Output struct {
	Binary bool   `json:"-"`
	Data   []byte `json:"-"`
	Text   string `json:"data"`
}

// CaptureReady carries the final transcript of a session
type CaptureReady struct {
	Pid      int    `json:"pid"`
	Text     string `json:"text"`
	ExitCode int    `json:"exitCode"`
}

// Ready is sent once a PTY is attached
type Ready struct {
	Pid int `json:"pid"`
}

// Error is a displayable error for the UI
type Error struct {
	Pid     int    `json:"pid"`
	Message string `json:"message"`
}
