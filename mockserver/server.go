// Package mockserver is a stand-in planning backend that streams scripted
// replies over WebSocket, for local development and tests.
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/transport"
)

// FailTrigger makes the server answer with an error frame
const FailTrigger = "/fail"

// Options configures the mock backend
type Options struct {
	// ChunkDelay is slept between outgoing frames
	ChunkDelay time.Duration
	// Script, when set, is replayed verbatim for every client message
	Script []transport.Frame
	Logger zerolog.Logger
}

// Server is the mock backend
type Server struct {
	engine   *gin.Engine
	upgrader websocket.Upgrader
	opts     Options
	log      zerolog.Logger
}

// New builds the server and its routes.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine: gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts: opts,
		log:  opts.Logger.With().Str("component", "mockserver").Logger(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/ws", s.handleWS)
	return s
}

// Handler exposes the routes for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Mock backend listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("mock backend failed: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request")
	}
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("Upgrade failed")
		return
	}
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		frame, err := transport.DecodeFrame(data)
		if err != nil || frame.Type != transport.FrameMessage {
			s.log.Warn().Err(err).Str("type", string(frame.Type)).Msg("Ignoring client frame")
			continue
		}

		s.log.Debug().Str("session_id", frame.SessionID).Str("turn_id", frame.TurnID).Msg("Streaming reply")
		for _, out := range s.reply(frame) {
			out.SessionID = frame.SessionID
			out.TurnID = frame.TurnID
			if err := conn.WriteJSON(out); err != nil {
				s.log.Debug().Err(err).Msg("Client went away")
				return
			}
			if s.opts.ChunkDelay > 0 {
				time.Sleep(s.opts.ChunkDelay)
			}
		}
	}
}

func (s *Server) reply(in transport.Frame) []transport.Frame {
	if len(s.opts.Script) > 0 {
		return s.opts.Script
	}
	return DefaultReply(in.Content)
}

// DefaultReply is the canned answer: one knowledge-base lookup followed by
// an echo of the prompt, split into word chunks.
func DefaultReply(prompt string) []transport.Frame {
	if strings.TrimSpace(prompt) == FailTrigger {
		return []transport.Frame{
			{Type: transport.FrameChunk, Content: "Let me check"},
			{Type: transport.FrameError, Message: "mock backend failure"},
		}
	}

	running := conversation.ToolInvocation{
		ToolName:  "search_knowledge_base",
		ToolUseID: "kb-1",
		Status:    conversation.ToolStatusRunning,
		Input:     map[string]interface{}{"query": prompt},
	}
	done := running
	done.Status = conversation.ToolStatusComplete
	done.Input = nil
	done.Output = "3 matching playbooks"

	frames := []transport.Frame{
		{Type: transport.FrameTool, Tool: transport.NewToolFrame(running)},
		{Type: transport.FrameTool, Tool: transport.NewToolFrame(done)},
	}

	answer := fmt.Sprintf("Here is a draft plan for: %s", prompt)
	words := strings.SplitAfter(answer, " ")
	for _, w := range words {
		frames = append(frames, transport.Frame{Type: transport.FrameChunk, Content: w})
	}
	return append(frames, transport.Frame{Type: transport.FrameComplete})
}
