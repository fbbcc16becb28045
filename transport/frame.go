// Package transport carries planning-chat events between the backend and a
// conversation session.
package transport

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nachoal/planchat-go/conversation"
)

// FrameType identifies a wire frame
type FrameType string

const (
	// FrameMessage is sent by the client to submit user input
	FrameMessage FrameType = "message"

	FrameChunk    FrameType = "chunk"
	FrameTool     FrameType = "tool"
	FrameComplete FrameType = "complete"
	FrameError    FrameType = "error"
)

var (
	// ErrUnknownFrame is returned by Dispatch for frame types it can't route
	ErrUnknownFrame = errors.New("unknown frame type")
	// ErrMalformedFrame is returned for frames missing required fields
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrClosed is returned when using a closed connection
	ErrClosed = errors.New("transport closed")
)

// Frame is one JSON text frame on the wire. TurnID names the assistant
// turn a frame belongs to: the client sets it on "message" and the backend
// echoes it on every reply frame.
type Frame struct {
	Type      FrameType  `json:"type"`
	SessionID string     `json:"session_id,omitempty"`
	TurnID    string     `json:"turn_id,omitempty"`
	Content   string     `json:"content,omitempty"`
	Message   string     `json:"message,omitempty"`
	Tool      *ToolFrame `json:"tool,omitempty"`
}

// ToolFrame is the wire form of a tool invocation. Input is kept raw
// because some backends send it as a JSON-encoded string.
type ToolFrame struct {
	ToolName  string          `json:"tool_name"`
	ToolUseID string          `json:"tool_use_id"`
	Status    string          `json:"status"`
	Input     json.RawMessage `json:"input,omitempty"`
	Output    string          `json:"output,omitempty"`
}

// Invocation converts the frame into the transcript model.
func (tf ToolFrame) Invocation() (conversation.ToolInvocation, error) {
	status := conversation.ToolStatus(tf.Status)
	if status != conversation.ToolStatusRunning && status != conversation.ToolStatusComplete {
		return conversation.ToolInvocation{}, fmt.Errorf("%w: tool status %q", ErrMalformedFrame, tf.Status)
	}
	if tf.ToolUseID == "" {
		return conversation.ToolInvocation{}, fmt.Errorf("%w: tool frame without tool_use_id", ErrMalformedFrame)
	}

	inv := conversation.ToolInvocation{
		ToolName:  tf.ToolName,
		ToolUseID: tf.ToolUseID,
		Status:    status,
		Output:    tf.Output,
	}
	if len(tf.Input) > 0 {
		inv.Input = NormalizeToolInput(tf.Input)
	}
	return inv, nil
}

// NewToolFrame converts a transcript tool invocation to its wire form.
func NewToolFrame(inv conversation.ToolInvocation) *ToolFrame {
	tf := &ToolFrame{
		ToolName:  inv.ToolName,
		ToolUseID: inv.ToolUseID,
		Status:    string(inv.Status),
		Output:    inv.Output,
	}
	if inv.Input != nil {
		if raw, err := json.Marshal(inv.Input); err == nil {
			tf.Input = raw
		}
	}
	return tf
}

// DecodeFrame parses a single JSON frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}
	return f, nil
}
