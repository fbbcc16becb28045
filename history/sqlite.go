package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nachoal/planchat-go/conversation"
)

// SQLiteStore keeps transcripts in a single SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) dataDir/transcripts.db
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "transcripts.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection keeps writes serialized without SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		version TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		backend TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		tool_calls INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS messages (
		transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		id TEXT NOT NULL,
		sender TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_streaming INTEGER,
		tool_events TEXT NOT NULL DEFAULT '[]',
		PRIMARY KEY (transcript_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_updated ON transcripts(updated_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts the transcript and replaces its messages
func (s *SQLiteStore) Save(t *Transcript) (err error) {
	if t.ID == "" {
		return fmt.Errorf("transcript has no id")
	}

	t.UpdatedAt = time.Now().UTC()
	if t.Metadata.Title == "" {
		t.Metadata.Title = generateTitle(t)
	}

	tags, err := json.Marshal(t.Metadata.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
	INSERT INTO transcripts (id, version, created_at, updated_at, backend, title, tags, tool_calls)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		version = excluded.version,
		updated_at = excluded.updated_at,
		backend = excluded.backend,
		title = excluded.title,
		tags = excluded.tags,
		tool_calls = excluded.tool_calls
	`,
		t.ID, t.Version, formatTime(t.CreatedAt), formatTime(t.UpdatedAt),
		t.Backend, t.Metadata.Title, string(tags), t.Metadata.ToolCalls)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM messages WHERE transcript_id = ?`, t.ID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	for i, m := range t.Messages {
		var events []byte
		events, err = json.Marshal(m.ToolEvents)
		if err != nil {
			return fmt.Errorf("failed to marshal tool events: %w", err)
		}
		var streaming sql.NullBool
		if m.IsStreaming != nil {
			streaming = sql.NullBool{Bool: *m.IsStreaming, Valid: true}
		}
		_, err = tx.Exec(`
		INSERT INTO messages (transcript_id, seq, id, sender, content, timestamp, is_streaming, tool_events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, i, m.ID, string(m.Sender), m.Content, formatTime(m.Timestamp), streaming, string(events))
		if err != nil {
			return fmt.Errorf("failed to save message %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transcript: %w", err)
	}
	return nil
}

// Load reads a transcript with its messages
func (s *SQLiteStore) Load(id string) (*Transcript, error) {
	t, err := s.loadHeader(`WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(`
	SELECT id, sender, content, timestamp, is_streaming, tool_events
	FROM messages WHERE transcript_id = ? ORDER BY seq
	`, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	t.Messages = []conversation.Message{}
	for rows.Next() {
		var (
			m         conversation.Message
			sender    string
			ts        string
			streaming sql.NullBool
			events    string
		)
		if err := rows.Scan(&m.ID, &sender, &m.Content, &ts, &streaming, &events); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.Sender = conversation.Sender(sender)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		if streaming.Valid {
			b := streaming.Bool
			m.IsStreaming = &b
		}
		if err := json.Unmarshal([]byte(events), &m.ToolEvents); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool events: %w", err)
		}
		t.Messages = append(t.Messages, m)
	}
	return t, rows.Err()
}

// Last returns the most recently updated transcript
func (s *SQLiteStore) Last() (*Transcript, error) {
	t, err := s.loadHeader(`ORDER BY updated_at DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	return s.Load(t.ID)
}

// List returns transcript summaries, newest first
func (s *SQLiteStore) List() ([]TranscriptInfo, error) {
	rows, err := s.db.Query(`
	SELECT t.id, t.title, t.created_at, t.updated_at, t.backend,
		(SELECT COUNT(*) FROM messages m WHERE m.transcript_id = t.id)
	FROM transcripts t
	ORDER BY t.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	infos := []TranscriptInfo{}
	for rows.Next() {
		var (
			info             TranscriptInfo
			created, updated string
		)
		if err := rows.Scan(&info.ID, &info.Title, &created, &updated, &info.Backend, &info.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		if info.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if info.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete removes a transcript and its messages
func (s *SQLiteStore) Delete(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE transcript_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	res, err := tx.Exec(`DELETE FROM transcripts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx.Commit()
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) loadHeader(clause string, args ...interface{}) (*Transcript, error) {
	var (
		t                      Transcript
		created, updated, tags string
	)
	err := s.db.QueryRow(`
	SELECT id, version, created_at, updated_at, backend, title, tags, tool_calls
	FROM transcripts `+clause, args...).Scan(
		&t.ID, &t.Version, &created, &updated, &t.Backend,
		&t.Metadata.Title, &tags, &t.Metadata.ToolCalls,
	)
	if errors.Is(err, sql.ErrNoRows) {
		if len(args) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, args[0])
		}
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript: %w", err)
	}

	if t.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Metadata.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	return &t, nil
}

// Fixed-width so that updated_at sorts lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
