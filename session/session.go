// Package session owns a single planning conversation: it is the one writer
// that advances the transcript and publishes snapshots to readers.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/nachoal/planchat-go/conversation"
)

var (
	// ErrEmptyInput is returned when submitting blank text
	ErrEmptyInput = errors.New("message is empty")
	// ErrTurnOpen is returned when the assistant is still answering
	ErrTurnOpen = errors.New("assistant turn still open")
	// ErrNothingToRetry is returned by Retry on an empty transcript
	ErrNothingToRetry = errors.New("nothing to retry")
)

// Turn is an assistant turn opened by Submit or Retry. ID is the assistant
// message id; it goes to the backend as the message frame's turn_id.
type Turn struct {
	ID     string
	Prompt string
}

// Update is published after every transition
type Update struct {
	Messages        []*conversation.Message
	ShowSuggestions bool
	Phase           conversation.Phase
	// Err carries the text of a transport-reported failure, if this update
	// was caused by one
	Err string
}

// Session holds one transcript. Readers call Snapshot at any time;
// transitions are serialized internally.
type Session struct {
	id  string
	gen conversation.Generator
	log zerolog.Logger

	mu        sync.Mutex
	current   atomic.Pointer[[]*conversation.Message]
	lastError atomic.Value // string
	anomalies atomic.Int64
	stale     atomic.Int64

	subsMu sync.Mutex
	subs   map[int]chan Update
	nextID int
}

// Option configures a Session
type Option func(*Session)

// WithGenerator injects the clock and id source used for new messages.
func WithGenerator(gen conversation.Generator) Option {
	return func(s *Session) {
		s.gen = gen
	}
}

// WithLogger sets the logger used to report protocol anomalies.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) {
		s.log = logger
	}
}

// WithMessages seeds the transcript, e.g. from a saved session. Any open
// assistant turn is settled.
func WithMessages(messages []*conversation.Message) Option {
	return func(s *Session) {
		seeded := messages
		if _, open := conversation.OpenTurn(seeded); open {
			seeded = conversation.CompleteStreaming(seeded)
		}
		s.current.Store(&seeded)
	}
}

// New creates an empty session with the given id.
func New(id string, opts ...Option) *Session {
	s := &Session{
		id:   id,
		gen:  conversation.DefaultGenerator(),
		log:  zerolog.Nop(),
		subs: make(map[int]chan Update),
	}
	empty := []*conversation.Message{}
	s.current.Store(&empty)
	s.lastError.Store("")

	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("component", "session").Str("session_id", id).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Snapshot returns the current transcript. The slice and its messages must
// be treated as read-only.
func (s *Session) Snapshot() []*conversation.Message {
	return *s.current.Load()
}

// ShowSuggestions reports whether example prompts should be offered.
func (s *Session) ShowSuggestions() bool {
	return conversation.ShouldShowSuggestions(s.Snapshot())
}

// Phase returns the derived state of the conversation slot.
func (s *Session) Phase() conversation.Phase {
	return conversation.PhaseOf(s.Snapshot())
}

// LastError returns the most recent transport failure, or "".
func (s *Session) LastError() string {
	return s.lastError.Load().(string)
}

// Anomalies counts untagged events that arrived with no open assistant turn.
func (s *Session) Anomalies() int64 {
	return s.anomalies.Load()
}

// Stale counts dropped events tagged with a turn other than the open one.
func (s *Session) Stale() int64 {
	return s.stale.Load()
}

// Title derives a display title from the first user message.
func (s *Session) Title() string {
	return Title(s.Snapshot())
}

// Submit appends the user's text and an open assistant placeholder.
func (s *Session) Submit(text string) (Turn, error) {
	return s.SubmitTurn("", text)
}

// SubmitTurn is Submit with a caller-chosen turn id, such as one read from a
// recorded frame log. An empty id is generated.
func (s *Session) SubmitTurn(turnID, text string) (Turn, error) {
	if strings.TrimSpace(text) == "" {
		return Turn{}, ErrEmptyInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Snapshot()
	if !conversation.Accepting(msgs) {
		return Turn{}, ErrTurnOpen
	}

	assistant := conversation.NewAssistantMessage(s.gen)
	if turnID != "" {
		assistant.ID = turnID
	}
	msgs = conversation.Append(msgs, conversation.NewUserMessage(s.gen, text))
	msgs = conversation.Append(msgs, assistant)
	s.lastError.Store("")
	s.publish(msgs, "")
	return Turn{ID: assistant.ID, Prompt: text}, nil
}

// Retry opens a fresh assistant turn after a settled one. The settled
// message stays in the transcript.
func (s *Session) Retry() (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Snapshot()
	if len(msgs) == 0 {
		return Turn{}, ErrNothingToRetry
	}
	if !conversation.Accepting(msgs) {
		return Turn{}, ErrTurnOpen
	}

	prompt := ""
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == conversation.SenderUser {
			prompt = msgs[i].Content
			break
		}
	}
	if prompt == "" {
		return Turn{}, fmt.Errorf("%w: no user message", ErrNothingToRetry)
	}

	assistant := conversation.NewAssistantMessage(s.gen)
	msgs = conversation.Append(msgs, assistant)
	s.lastError.Store("")
	s.publish(msgs, "")
	return Turn{ID: assistant.ID, Prompt: prompt}, nil
}

// Reset discards the transcript.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError.Store("")
	s.publish([]*conversation.Message{}, "")
}

// Cancel settles the open turn, if any, without recording an error. The
// backend may keep streaming it; those frames carry the cancelled turn id
// and are dropped.
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.Snapshot()
	if _, open := conversation.OpenTurn(msgs); !open {
		return
	}
	s.publish(conversation.CompleteStreaming(msgs), "")
}

// OnChunk appends streamed text to the open turn.
func (s *Session) OnChunk(turnID, text string) {
	s.apply("chunk", turnID, func(msgs []*conversation.Message) []*conversation.Message {
		return conversation.ApplyContentChunk(msgs, text)
	})
}

// OnTool records a tool event on the open turn.
func (s *Session) OnTool(turnID string, tool conversation.ToolInvocation) {
	s.apply("tool", turnID, func(msgs []*conversation.Message) []*conversation.Message {
		return conversation.ApplyToolEvent(msgs, tool)
	})
}

// OnComplete settles the open turn.
func (s *Session) OnComplete(turnID string) {
	s.apply("complete", turnID, conversation.CompleteStreaming)
}

// OnError settles the open turn and keeps message for display. The text
// never enters the transcript. An untagged error with no open turn, such as
// a lost connection while idle, is still shown.
func (s *Session) OnError(turnID, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Snapshot()
	if !s.accept("error", turnID, msgs) {
		if turnID == "" {
			s.lastError.Store(message)
			s.publish(msgs, message)
		}
		return
	}

	s.lastError.Store(message)
	s.log.Warn().Str("error", message).Msg("Stream failed")
	s.publish(conversation.CompleteStreaming(msgs), message)
}

// apply runs a transition against the open turn.
func (s *Session) apply(kind, turnID string, f func([]*conversation.Message) []*conversation.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := s.Snapshot()
	if !s.accept(kind, turnID, msgs) {
		return
	}
	s.publish(f(msgs), "")
}

// accept reports whether an event may change the open turn. A tagged event
// must name the open turn; anything else belongs to a cancelled or foreign
// turn and is stale. An untagged event with no open turn is an anomaly.
// Must be called with s.mu held.
func (s *Session) accept(kind, turnID string, msgs []*conversation.Message) bool {
	open, ok := conversation.OpenTurn(msgs)
	switch {
	case turnID != "" && (!ok || open.ID != turnID):
		n := s.stale.Add(1)
		s.log.Debug().
			Str("event", kind).
			Str("turn_id", turnID).
			Int64("stale", n).
			Msg("Dropping event for another turn")
		return false
	case !ok:
		n := s.anomalies.Add(1)
		s.log.Warn().
			Str("event", kind).
			Str("phase", conversation.PhaseOf(msgs).String()).
			Int64("anomalies", n).
			Msg("Event without open assistant turn")
		return false
	}
	return true
}

// publish must be called with s.mu held.
func (s *Session) publish(msgs []*conversation.Message, errText string) {
	s.current.Store(&msgs)
	update := Update{
		Messages:        msgs,
		ShowSuggestions: conversation.ShouldShowSuggestions(msgs),
		Phase:           conversation.PhaseOf(msgs),
		Err:             errText,
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		deliver(ch, update)
	}
}

// deliver replaces a stale pending update rather than blocking the writer.
func deliver(ch chan Update, u Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case stale := <-ch:
			if stale.Err != "" && u.Err == "" {
				u.Err = stale.Err
			}
		default:
		}
	}
}

// Subscribe returns a channel of updates and a function that cancels the
// subscription. Only the latest pending update is kept for slow readers.
func (s *Session) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, 1)

	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
			close(ch)
		})
	}
}
