package transport

import (
	"fmt"

	"github.com/nachoal/planchat-go/conversation"
)

// Handler receives backend events, in order, from a single goroutine.
// turnID is the frame's turn_id; it is empty when the backend did not tag
// the frame or the event was raised locally.
type Handler interface {
	OnChunk(turnID, text string)
	OnTool(turnID string, tool conversation.ToolInvocation)
	OnComplete(turnID string)
	OnError(turnID, message string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are skipped.
type HandlerFuncs struct {
	Chunk    func(turnID, text string)
	Tool     func(turnID string, tool conversation.ToolInvocation)
	Complete func(turnID string)
	Error    func(turnID, message string)
}

func (h HandlerFuncs) OnChunk(turnID, text string) {
	if h.Chunk != nil {
		h.Chunk(turnID, text)
	}
}

func (h HandlerFuncs) OnTool(turnID string, tool conversation.ToolInvocation) {
	if h.Tool != nil {
		h.Tool(turnID, tool)
	}
}

func (h HandlerFuncs) OnComplete(turnID string) {
	if h.Complete != nil {
		h.Complete(turnID)
	}
}

func (h HandlerFuncs) OnError(turnID, message string) {
	if h.Error != nil {
		h.Error(turnID, message)
	}
}

// Dispatch routes a server frame to the matching callback. Client-only
// frames and unknown types are rejected without calling h.
func Dispatch(f Frame, h Handler) error {
	switch f.Type {
	case FrameChunk:
		h.OnChunk(f.TurnID, f.Content)
	case FrameTool:
		if f.Tool == nil {
			return fmt.Errorf("%w: tool frame without tool", ErrMalformedFrame)
		}
		inv, err := f.Tool.Invocation()
		if err != nil {
			return err
		}
		h.OnTool(f.TurnID, inv)
	case FrameComplete:
		h.OnComplete(f.TurnID)
	case FrameError:
		h.OnError(f.TurnID, f.Message)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrame, f.Type)
	}
	return nil
}

// Untagged forwards events to h with their turn id cleared, so h applies
// them to whatever turn is open.
func Untagged(h Handler) Handler {
	return HandlerFuncs{
		Chunk:    func(_, text string) { h.OnChunk("", text) },
		Tool:     func(_ string, tool conversation.ToolInvocation) { h.OnTool("", tool) },
		Complete: func(string) { h.OnComplete("") },
		Error:    func(_, message string) { h.OnError("", message) },
	}
}

// Tee fans each event out to every handler in order.
func Tee(handlers ...Handler) Handler {
	return tee(handlers)
}

type tee []Handler

func (t tee) OnChunk(turnID, text string) {
	for _, h := range t {
		h.OnChunk(turnID, text)
	}
}

func (t tee) OnTool(turnID string, tool conversation.ToolInvocation) {
	for _, h := range t {
		h.OnTool(turnID, tool)
	}
}

func (t tee) OnComplete(turnID string) {
	for _, h := range t {
		h.OnComplete(turnID)
	}
}

func (t tee) OnError(turnID, message string) {
	for _, h := range t {
		h.OnError(turnID, message)
	}
}
