package history

import (
	"errors"
	"time"

	"github.com/nachoal/planchat-go/conversation"
)

const formatVersion = "1.0"

// ErrNotFound is returned when a transcript does not exist
var ErrNotFound = errors.New("transcript not found")

// Store persists settled transcripts
type Store interface {
	Save(t *Transcript) error
	Load(id string) (*Transcript, error)
	List() ([]TranscriptInfo, error)
	Last() (*Transcript, error)
	Delete(id string) error
	Close() error
}

// Transcript is a saved conversation
type Transcript struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Backend   string                 `json:"backend"`
	Metadata  Metadata               `json:"metadata"`
	Messages  []conversation.Message `json:"messages"`
}

// Metadata contains transcript metadata
type Metadata struct {
	Title     string   `json:"title"`
	Tags      []string `json:"tags"`
	ToolCalls int      `json:"tool_calls"`
}

// TranscriptInfo provides summary information for listing
type TranscriptInfo struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
	Backend   string    `json:"backend"`
}

// MetaIndex tracks the most recently saved transcript
type MetaIndex struct {
	Version     string `json:"version"`
	LastSession string `json:"last_session_id,omitempty"`
}

func (t *Transcript) info() TranscriptInfo {
	return TranscriptInfo{
		ID:        t.ID,
		Title:     t.Metadata.Title,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
		Messages:  len(t.Messages),
		Backend:   t.Backend,
	}
}
