package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON file per transcript plus a meta index
type FileStore struct {
	sessionsDir string
	metaPath    string
	mu          sync.RWMutex
}

// NewFileStore creates a store under dataDir/sessions
func NewFileStore(dataDir string) (*FileStore, error) {
	sessionsDir := filepath.Join(dataDir, "sessions")

	s := &FileStore{
		sessionsDir: sessionsDir,
		metaPath:    filepath.Join(sessionsDir, "meta.json"),
	}

	// Transcripts hold customer conversations, keep them user-only
	if err := os.MkdirAll(s.sessionsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	if _, err := os.Stat(s.metaPath); os.IsNotExist(err) {
		if err := s.saveMeta(&MetaIndex{Version: formatVersion}); err != nil {
			return nil, fmt.Errorf("failed to initialize meta index: %w", err)
		}
	}

	return s, nil
}

// Save writes the transcript to disk
func (s *FileStore) Save(t *Transcript) error {
	if t.ID == "" {
		return fmt.Errorf("transcript has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t.UpdatedAt = time.Now().UTC()
	if t.Metadata.Title == "" {
		t.Metadata.Title = generateTitle(t)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcript: %w", err)
	}

	if err := os.WriteFile(s.path(t.ID), data, 0600); err != nil {
		return fmt.Errorf("failed to write transcript file: %w", err)
	}

	meta, err := s.loadMeta()
	if err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}
	meta.LastSession = t.ID
	if err := s.saveMeta(meta); err != nil {
		return fmt.Errorf("failed to save meta: %w", err)
	}

	return nil
}

// Load reads a transcript from disk
func (s *FileStore) Load(id string) (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(id)
}

func (s *FileStore) load(id string) (*Transcript, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read transcript file: %w", err)
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal transcript: %w", err)
	}

	return &t, nil
}

// Last returns the most recently saved transcript
func (s *FileStore) Last() (*Transcript, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.loadMeta()
	if err != nil {
		return nil, fmt.Errorf("failed to load meta: %w", err)
	}
	if meta.LastSession == "" {
		return nil, ErrNotFound
	}
	return s.load(meta.LastSession)
}

// List returns all transcripts, newest first
func (s *FileStore) List() ([]TranscriptInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	infos := []TranscriptInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == "meta.json" {
			continue
		}

		t, err := s.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		infos = append(infos, t.info())
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})

	return infos, nil
}

// Delete removes a transcript
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	meta, err := s.loadMeta()
	if err != nil {
		return fmt.Errorf("failed to load meta: %w", err)
	}
	if meta.LastSession == id {
		meta.LastSession = ""
		return s.saveMeta(meta)
	}
	return nil
}

// Close is a no-op for the file store
func (s *FileStore) Close() error {
	return nil
}

// Private methods

func (s *FileStore) path(id string) string {
	return filepath.Join(s.sessionsDir, filepath.Base(id)+".json")
}

func (s *FileStore) loadMeta() (*MetaIndex, error) {
	data, err := os.ReadFile(s.metaPath)
	if err != nil {
		return nil, err
	}

	var meta MetaIndex
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *FileStore) saveMeta(meta *MetaIndex) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.metaPath, data, 0600)
}
