package testutil

import (
	"sync"

	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/ipc"
	"github.com/GriffinCanCode/AgentOS/terminal/internal/terminal/shell"
)

// Channel records every message sent to the UI
type Channel struct {
	mu   sync.Mutex
	msgs []ipc.Message
	err  error
}

var _ ipc.Channel = (*Channel)(nil)

// NewChannel creates a recording channel
func NewChannel() *Channel {
	return &Channel{}
}

func (c *Channel) Send(msg ipc.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

// SetErr makes subsequent sends fail with err
func (c *Channel) SetErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Messages returns everything sent so far
func (c *Channel) Messages() []ipc.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ipc.Message(nil), c.msgs...)
}

// OfType returns the messages of type t
func (c *Channel) OfType(t ipc.MessageType) []ipc.Message {
	var out []ipc.Message
	for _, m := range c.Messages() {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

// Types returns the type of every message in order
func (c *Channel) Types() []ipc.MessageType {
	var out []ipc.MessageType
	for _, m := range c.Messages() {
		out = append(out, m.Type)
	}
	return out
}

// Output concatenates every terminal-output payload
func (c *Channel) Output() string {
	var out []byte
	for _, m := range c.OfType(ipc.TerminalOutput) {
		if p, ok := m.Payload.(ipc.Output); ok {
			if p.Binary {
				out = append(out, p.Data...)
			} else {
				out = append(out, p.Text...)
			}
		}
	}
	return string(out)
}

// Resolver returns a linux resolver with a fixed environment
func Resolver() *shell.Resolver {
	env := map[string]string{
		"SHELL": "/bin/bash",
		"HOME":  "/home/tester",
		"PATH":  "/usr/bin:/bin",
	}
	return shell.NewResolver(
		shell.WithGOOS("linux"),
		shell.WithEnv(
			func(k string) string { return env[k] },
			func() []string {
				return []string{"SHELL=/bin/bash", "HOME=/home/tester", "PATH=/usr/bin:/bin"}
			},
		),
		shell.WithHomeDir(func() (string, error) { return "/home/tester", nil }),
		shell.WithProgram("kit", "1.0.0"),
	)
}
