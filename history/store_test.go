package history

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nachoal/planchat-go/conversation"
)

func sampleMessages() []*conversation.Message {
	gen := conversation.Generator{
		Clock: conversation.FixedClock{T: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)},
		IDs:   &conversation.SequenceIDs{Prefix: "m"},
	}
	msgs := conversation.Append(nil, conversation.NewUserMessage(gen, "Size a pilot for Acme"))
	msgs = conversation.Append(msgs, conversation.NewAssistantMessage(gen))
	msgs = conversation.ApplyToolEvent(msgs, conversation.ToolInvocation{
		ToolName:  "crm_lookup",
		ToolUseID: "t1",
		Status:    conversation.ToolStatusRunning,
		Input:     map[string]interface{}{"account": "Acme"},
	})
	msgs = conversation.ApplyToolEvent(msgs, conversation.ToolInvocation{
		ToolName:  "crm_lookup",
		ToolUseID: "t1",
		Status:    conversation.ToolStatusComplete,
		Output:    "120 seats",
	})
	return conversation.ApplyContentChunk(msgs, "Start with 20 seats.")
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := Open(BackendFile, t.TempDir())
	if err != nil {
		t.Fatalf("failed to open file store: %v", err)
	}
	sqliteStore, err := Open(BackendSQLite, t.TempDir())
	if err != nil {
		t.Fatalf("failed to open sqlite store: %v", err)
	}
	t.Cleanup(func() {
		fileStore.Close()
		sqliteStore.Close()
	})
	return map[string]Store{BackendFile: fileStore, BackendSQLite: sqliteStore}
}

func mustSave(t *testing.T, store Store, tr *Transcript) {
	t.Helper()
	if err := store.Save(tr); err != nil {
		t.Fatalf("failed to save %s: %v", tr.ID, err)
	}
}

func TestNewTranscriptSettlesOpenTurn(t *testing.T) {
	msgs := sampleMessages()
	if !msgs[1].Streaming() {
		t.Fatal("sample assistant should be streaming")
	}

	tr := NewTranscript("s1", "ws://localhost/ws", "Size a pilot", msgs)

	if len(tr.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(tr.Messages))
	}
	if tr.Messages[1].IsStreaming == nil || *tr.Messages[1].IsStreaming {
		t.Fatal("saved assistant should be settled")
	}
	if !msgs[1].Streaming() {
		t.Fatal("input must not change")
	}
	if tr.Messages[0].IsStreaming != nil {
		t.Fatal("user message should have no streaming flag")
	}
	if tr.Metadata.ToolCalls != 1 {
		t.Fatalf("expected 1 tool call, got %d", tr.Metadata.ToolCalls)
	}
	if !tr.CreatedAt.Equal(msgs[0].Timestamp) {
		t.Fatalf("unexpected created time %v", tr.CreatedAt)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			tr := NewTranscript("s1", "ws://localhost/ws", "Size a pilot", sampleMessages())
			mustSave(t, store, tr)

			loaded, err := store.Load("s1")
			if err != nil {
				t.Fatalf("failed to load: %v", err)
			}
			if loaded.Metadata.Title != "Size a pilot" || loaded.Backend != "ws://localhost/ws" {
				t.Fatalf("unexpected header: %+v", loaded.Metadata)
			}
			if len(loaded.Messages) != 2 {
				t.Fatalf("expected 2 messages, got %d", len(loaded.Messages))
			}

			user, assistant := loaded.Messages[0], loaded.Messages[1]
			if user.Content != "Size a pilot for Acme" || user.IsStreaming != nil {
				t.Fatalf("unexpected user message: %+v", user)
			}
			if assistant.Content != "Start with 20 seats." || assistant.Streaming() {
				t.Fatalf("unexpected assistant message: %+v", assistant)
			}
			if len(assistant.ToolEvents) != 1 || assistant.ToolEvents[0].Output != "120 seats" {
				t.Fatalf("unexpected tool events: %+v", assistant.ToolEvents)
			}
			if !assistant.Timestamp.Equal(tr.Messages[1].Timestamp) {
				t.Fatalf("timestamp changed: %v", assistant.Timestamp)
			}

			if phase := conversation.PhaseOf(loaded.Conversation()); phase != conversation.PhaseSettled {
				t.Fatalf("expected settled, got %s", phase)
			}
		})
	}
}

func TestStoreListLastDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Last(); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			mustSave(t, store, NewTranscript("a", "", "", sampleMessages()))
			time.Sleep(5 * time.Millisecond)
			mustSave(t, store, NewTranscript("b", "", "Second", sampleMessages()[:1]))

			infos, err := store.List()
			if err != nil {
				t.Fatalf("failed to list: %v", err)
			}
			if len(infos) != 2 || infos[0].ID != "b" {
				t.Fatalf("expected newest first, got %+v", infos)
			}
			if infos[0].Messages != 1 || infos[1].Messages != 2 {
				t.Fatalf("unexpected message counts: %+v", infos)
			}
			if !strings.Contains(infos[1].Title, "Session ") {
				t.Fatalf("expected generated title, got %q", infos[1].Title)
			}

			last, err := store.Last()
			if err != nil || last.ID != "b" {
				t.Fatalf("expected last b, got %v %v", last, err)
			}

			if err := store.Delete("b"); err != nil {
				t.Fatalf("failed to delete: %v", err)
			}
			if err := store.Delete("b"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on second delete, got %v", err)
			}
			if _, err := store.Load("b"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound on load, got %v", err)
			}

			infos, err = store.List()
			if err != nil || len(infos) != 1 {
				t.Fatalf("expected 1 transcript left, got %d (%v)", len(infos), err)
			}
		})
	}
}

func TestSaveOverwrites(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			msgs := sampleMessages()
			mustSave(t, store, NewTranscript("s", "", "t", msgs[:1]))
			mustSave(t, store, NewTranscript("s", "", "t", msgs))

			loaded, err := store.Load("s")
			if err != nil || len(loaded.Messages) != 2 {
				t.Fatalf("expected overwritten transcript, got %+v (%v)", loaded, err)
			}
			infos, err := store.List()
			if err != nil || len(infos) != 1 {
				t.Fatalf("expected 1 transcript, got %d (%v)", len(infos), err)
			}
		})
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("postgres", t.TempDir()); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == b {
		t.Fatal("session ids should differ")
	}
	if want := len("20060102_150405_") + 6; len(a) != want {
		t.Fatalf("expected id length %d, got %q", want, a)
	}
}
