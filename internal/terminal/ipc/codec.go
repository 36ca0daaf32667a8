package ipc

import (
	"fmt"
	"math"

	"github.com/bytedance/sonic"
)

// DecodeEnvelope parses one inbound wire message
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("invalid envelope: missing type")
	}
	return env, nil
}

// Encode renders msg as a JSON envelope. Binary output is carried as the
// raw bytes' string form; transports that support binary frames should send
// Output.Data directly instead.
func Encode(msg Message) ([]byte, error) {
	payload := msg.Payload
	if out, ok := payload.(Output); ok && out.Binary {
		payload = Output{Text: string(out.Data)}
	}

	wire := struct {
		Type    MessageType `json:"type"`
		Payload any         `json:"payload"`
	}{Type: msg.Type, Payload: payload}

	data, err := sonic.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", msg.Type, err)
	}
	return data, nil
}

// DecodeInput decodes a terminal-input payload
func DecodeInput(payload []byte) (Input, error) {
	var in Input
	if err := sonic.Unmarshal(payload, &in); err != nil {
		return Input{}, fmt.Errorf("invalid input: %w", err)
	}
	return in, nil
}

// MaxDimension is the largest column or row count a PTY window can hold
const MaxDimension = math.MaxUint16

// DecodeResize decodes a terminal-resize payload
func DecodeResize(payload []byte) (Resize, error) {
	var r Resize
	if err := sonic.Unmarshal(payload, &r); err != nil {
		return Resize{}, fmt.Errorf("invalid resize: %w", err)
	}
	if r.Cols <= 0 || r.Rows <= 0 || r.Cols > MaxDimension || r.Rows > MaxDimension {
		return Resize{}, fmt.Errorf("invalid resize: %dx%d", r.Cols, r.Rows)
	}
	return r, nil
}

// DecodeKill decodes a terminal-kill payload, either a bare pid or {"pid": n}
func DecodeKill(payload []byte) (int, error) {
	var pid int
	if err := sonic.Unmarshal(payload, &pid); err == nil {
		return pid, nil
	}

	var k Kill
	if err := sonic.Unmarshal(payload, &k); err != nil {
		return 0, fmt.Errorf("invalid kill: %w", err)
	}
	return k.Pid, nil
}
