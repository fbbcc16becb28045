package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/tui/styles"
)

func TestTruncateToWidth(t *testing.T) {
	if got := truncateToWidth("abcdef", 4); got != "abc…" {
		t.Fatalf("unexpected truncate result: %q", got)
	}
	if got := truncateToWidth("a", 1); got != "a" {
		t.Fatalf("unexpected width-1 result: %q", got)
	}
	if got := truncateToWidth("abc", 0); got != "" {
		t.Fatalf("unexpected width-0 result: %q", got)
	}
}

func TestFormatArguments(t *testing.T) {
	if got := formatArguments(nil); got != "" {
		t.Fatalf("expected empty arguments, got %q", got)
	}
	got := formatArguments(map[string]interface{}{"seats": 120, "account": "Acme"})
	if got != "(account=Acme, seats=120)" {
		t.Fatalf("unexpected arguments: %q", got)
	}

	long := formatArguments(map[string]interface{}{"q": strings.Repeat("a", 100) + "\n\tb"})
	if !strings.HasSuffix(long, "…)") || strings.Contains(long, "\n") {
		t.Fatalf("long value not truncated to one line: %q", long)
	}
}

func TestSettledAssistantRenderedOnce(t *testing.T) {
	r := newTranscriptRenderer(styles.Default(), 60)
	gen := conversation.Generator{
		Clock: conversation.FixedClock{T: time.Unix(0, 0)},
		IDs:   &conversation.SequenceIDs{Prefix: "m"},
	}
	msgs := conversation.Append(nil, conversation.NewUserMessage(gen, "hi"))
	msgs = conversation.Append(msgs, conversation.NewAssistantMessage(gen))
	msgs = conversation.ApplyContentChunk(msgs, "Step one")

	assertContains(t, stripANSI(r.render(msgs, "*")), "Step one")
	if len(r.cache) != 0 {
		t.Fatal("streaming message must not be cached")
	}

	msgs = conversation.CompleteStreaming(msgs)
	settled := stripANSI(r.render(msgs, "*"))
	assertContains(t, settled, "Step one")
	if len(r.cache) != 1 {
		t.Fatalf("expected 1 cached render, got %d", len(r.cache))
	}
	if again := stripANSI(r.render(msgs, "*")); again != settled {
		t.Fatalf("cached render differs:\n%s\n%s", settled, again)
	}

	if got := r.render(nil, ""); got != "" || len(r.cache) != 0 {
		t.Fatal("empty transcript should render nothing and reset the cache")
	}
}

func TestSessionPicker(t *testing.T) {
	now := time.Now()
	p := NewSessionPicker([]history.TranscriptInfo{
		{ID: "a", Title: "Renewal plan", UpdatedAt: now, Messages: 4},
		{ID: "b", Title: "Pilot sizing", UpdatedAt: now.Add(-time.Hour), Messages: 2},
	})

	view := stripANSI(p.View())
	assertContains(t, view, "▸ ")
	assertContains(t, view, "Renewal plan (4 messages)")

	p.Update(keyMsg("down"))
	p.Update(keyMsg("enter"))
	if p.SelectedID != "b" {
		t.Fatalf("expected b selected, got %q", p.SelectedID)
	}
}

func TestSessionPickerEmpty(t *testing.T) {
	p := NewSessionPicker(nil)
	assertContains(t, p.View(), "No saved plans yet")
	p.Update(keyMsg("enter"))
	if p.SelectedID != "" {
		t.Fatalf("nothing should be selected, got %q", p.SelectedID)
	}
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}
