package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nachoal/planchat-go/conversation"
)

const maxFrameSize = 1 << 20

// ReplayOptions controls Replay
type ReplayOptions struct {
	// Delay is slept between frames to mimic a live stream
	Delay time.Duration
	// Logger receives a warning for every frame that can't be dispatched
	Logger zerolog.Logger
	// Strict aborts on the first undispatchable frame instead of skipping it
	Strict bool
}

// Replay reads JSONL frames from r and dispatches them to h in file order.
// Blank lines and lines starting with '#' are skipped. Client "message"
// frames are passed to onMessage if it is non-nil, so a replay can rebuild
// the user side of a transcript.
func Replay(ctx context.Context, r io.Reader, h Handler, onMessage func(Frame), opts ReplayOptions) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxFrameSize)

	dispatched := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		if err := ctx.Err(); err != nil {
			return dispatched, err
		}

		frame, err := DecodeFrame([]byte(text))
		if err == nil {
			if frame.Type == FrameMessage {
				if onMessage != nil {
					onMessage(frame)
				}
				dispatched++
				continue
			}
			err = Dispatch(frame, h)
		}
		if err != nil {
			if opts.Strict {
				return dispatched, fmt.Errorf("line %d: %w", line, err)
			}
			opts.Logger.Warn().Err(err).Int("line", line).Msg("Skipping frame")
			continue
		}
		dispatched++

		if opts.Delay > 0 {
			select {
			case <-ctx.Done():
				return dispatched, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return dispatched, fmt.Errorf("failed to read frames: %w", err)
	}
	return dispatched, nil
}

// Recorder writes every event it sees as a JSONL frame before forwarding it
// to Next. The output can be fed back through Replay.
type Recorder struct {
	Next Handler

	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewRecorder records to w and forwards to next (which may be nil).
func NewRecorder(w io.Writer, next Handler) *Recorder {
	return &Recorder{Next: next, enc: json.NewEncoder(w)}
}

// RecordMessage writes a client message frame.
func (r *Recorder) RecordMessage(sessionID, turnID, text string) {
	r.write(Frame{Type: FrameMessage, SessionID: sessionID, TurnID: turnID, Content: text})
}

// Err returns the first write error, if any.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder) write(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}
	if err := r.enc.Encode(f); err != nil {
		r.err = fmt.Errorf("failed to record frame: %w", err)
	}
}

func (r *Recorder) OnChunk(turnID, text string) {
	r.write(Frame{Type: FrameChunk, TurnID: turnID, Content: text})
	if r.Next != nil {
		r.Next.OnChunk(turnID, text)
	}
}

func (r *Recorder) OnTool(turnID string, tool conversation.ToolInvocation) {
	r.write(Frame{Type: FrameTool, TurnID: turnID, Tool: NewToolFrame(tool)})
	if r.Next != nil {
		r.Next.OnTool(turnID, tool)
	}
}

func (r *Recorder) OnComplete(turnID string) {
	r.write(Frame{Type: FrameComplete, TurnID: turnID})
	if r.Next != nil {
		r.Next.OnComplete(turnID)
	}
}

func (r *Recorder) OnError(turnID, message string) {
	r.write(Frame{Type: FrameError, TurnID: turnID, Message: message})
	if r.Next != nil {
		r.Next.OnError(turnID, message)
	}
}
