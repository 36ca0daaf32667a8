package session

import (
	"time"

	"go.uber.org/zap"
)

// The initial command is typed once output has been quiet for settleDelay,
// so it does not interleave with the shell's startup banner.

func (o *Orchestrator) armSettle() {
	o.settleMu.Lock()
	defer o.settleMu.Unlock()
	o.settleTimer = time.AfterFunc(o.settleDelay, o.injectCommand)
}

func (o *Orchestrator) resetSettle() {
	o.settleMu.Lock()
	defer o.settleMu.Unlock()
	if o.settleTimer != nil {
		o.settleTimer.Reset(o.settleDelay)
	}
}

func (o *Orchestrator) stopSettle() {
	o.settleMu.Lock()
	defer o.settleMu.Unlock()
	if o.settleTimer != nil {
		o.settleTimer.Stop()
		o.settleTimer = nil
	}
}

func (o *Orchestrator) injectCommand() {
	o.stopSettle()

	o.mu.Lock()
	if o.state != Attached || o.cfg.Command == "" {
		o.mu.Unlock()
		return
	}
	command := o.cfg.Command
	o.cfg.Command = ""
	pty := o.pty
	o.mu.Unlock()

	if err := pty.WriteString(command + o.resolver.LineEnding()); err != nil {
		o.logger.Warn("Failed to send initial command", zap.Int("pid", pty.Pid()), zap.Error(err))
		return
	}
	o.logger.Debug("Initial command sent", zap.Int("pid", pty.Pid()))
}
