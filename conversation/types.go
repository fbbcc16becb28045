// Package conversation holds the planning-chat transcript model and the pure
// transitions that fold streamed chunks and tool events into it.
package conversation

import (
	"time"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ToolStatus is the lifecycle state of a tool invocation
type ToolStatus string

const (
	ToolStatusRunning  ToolStatus = "running"
	ToolStatusComplete ToolStatus = "complete"
)

// Message is one entry of the transcript. Values reachable from a transcript
// are never modified in place; transitions replace the tail with a copy.
type Message struct {
	ID          string           `json:"id"`
	Sender      Sender           `json:"sender"`
	Content     string           `json:"content"`
	Timestamp   time.Time        `json:"timestamp"`
	IsStreaming *bool            `json:"is_streaming,omitempty"` // nil for user messages
	ToolEvents  []ToolInvocation `json:"tool_events,omitempty"`
}

// ToolInvocation reports a capability the assistant called
type ToolInvocation struct {
	ToolName  string                 `json:"tool_name"`
	ToolUseID string                 `json:"tool_use_id"`
	Status    ToolStatus             `json:"status"`
	Input     map[string]interface{} `json:"input,omitempty"`
	Output    string                 `json:"output,omitempty"`
}

// Streaming reports whether the message is an open assistant turn.
func (m *Message) Streaming() bool {
	return m != nil && m.IsStreaming != nil && *m.IsStreaming
}

// IsAssistant reports whether the message was authored by the assistant.
func (m *Message) IsAssistant() bool {
	return m != nil && m.Sender == SenderAssistant
}

// Clone returns a copy that shares nothing mutable with m.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	c := *m
	if m.IsStreaming != nil {
		c.IsStreaming = boolPtr(*m.IsStreaming)
	}
	if m.ToolEvents != nil {
		c.ToolEvents = make([]ToolInvocation, len(m.ToolEvents))
		for i, ev := range m.ToolEvents {
			c.ToolEvents[i] = ev.Clone()
		}
	}
	return &c
}

// Clone returns a copy with its own Input map.
func (t ToolInvocation) Clone() ToolInvocation {
	if t.Input != nil {
		input := make(map[string]interface{}, len(t.Input))
		for k, v := range t.Input {
			input[k] = v
		}
		t.Input = input
	}
	return t
}

func boolPtr(b bool) *bool {
	return &b
}
