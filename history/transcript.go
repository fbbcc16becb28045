package history

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/nachoal/planchat-go/conversation"
)

// NewSessionID returns an id that sorts by creation time.
func NewSessionID() string {
	return fmt.Sprintf("%s_%s",
		time.Now().Format("20060102_150405"),
		generateRandomID(6))
}

// NewTranscript snapshots msgs for saving. An assistant turn that is still
// open is stored settled, since it can't resume after a restart.
func NewTranscript(id, backend, title string, msgs []*conversation.Message) *Transcript {
	now := time.Now().UTC()
	t := &Transcript{
		ID:        id,
		Version:   formatVersion,
		CreatedAt: now,
		UpdatedAt: now,
		Backend:   backend,
		Metadata: Metadata{
			Title: title,
			Tags:  []string{},
		},
		Messages: make([]conversation.Message, 0, len(msgs)),
	}

	if _, open := conversation.OpenTurn(msgs); open {
		msgs = conversation.CompleteStreaming(msgs)
	}
	for _, m := range msgs {
		c := m.Clone()
		t.Metadata.ToolCalls += len(c.ToolEvents)
		t.Messages = append(t.Messages, *c)
	}
	if len(msgs) > 0 {
		t.CreatedAt = msgs[0].Timestamp
	}
	return t
}

// Conversation returns the messages in transcript form for seeding a
// session.
func (t *Transcript) Conversation() []*conversation.Message {
	msgs := make([]*conversation.Message, len(t.Messages))
	for i := range t.Messages {
		msgs[i] = t.Messages[i].Clone()
	}
	return msgs
}

func generateTitle(t *Transcript) string {
	return fmt.Sprintf("Session %s", t.CreatedAt.Format("Jan 02 15:04"))
}

func generateRandomID(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, length)
	rand.Read(b)
	for i := range b {
		b[i] = charset[b[i]%byte(len(charset))]
	}
	return string(b)
}
