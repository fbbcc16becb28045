package tui

import (
	"sync/atomic"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/session"
)

// Router forwards backend events to whichever session is active. The
// connection outlives a session when the user starts a new one; frames
// still streaming for the previous session's turn carry that turn's id and
// are dropped by the new session.
type Router struct {
	current atomic.Pointer[session.Session]
}

// NewRouter returns a router pointing at s
func NewRouter(s *session.Session) *Router {
	r := &Router{}
	r.current.Store(s)
	return r
}

// Session returns the active session
func (r *Router) Session() *session.Session {
	return r.current.Load()
}

// Set makes s the active session
func (r *Router) Set(s *session.Session) {
	r.current.Store(s)
}

func (r *Router) OnChunk(turnID, text string) {
	r.Session().OnChunk(turnID, text)
}

func (r *Router) OnTool(turnID string, tool conversation.ToolInvocation) {
	r.Session().OnTool(turnID, tool)
}

func (r *Router) OnComplete(turnID string) {
	r.Session().OnComplete(turnID)
}

func (r *Router) OnError(turnID, message string) {
	r.Session().OnError(turnID, message)
}
