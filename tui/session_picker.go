package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/tui/styles"
)

// SessionPicker lets the user choose a saved transcript to resume
type SessionPicker struct {
	sessions []history.TranscriptInfo
	selected int
	width    int
	height   int
	styles   *styles.Styles

	// SelectedID is set once the user confirms a choice
	SelectedID string
}

// NewSessionPicker creates a picker over sessions, newest first
func NewSessionPicker(sessions []history.TranscriptInfo) *SessionPicker {
	return &SessionPicker{
		sessions: sessions,
		width:    80,
		height:   24,
		styles:   styles.Default(),
	}
}

func (p *SessionPicker) Init() tea.Cmd {
	return nil
}

func (p *SessionPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.width = msg.Width
		p.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if p.selected > 0 {
				p.selected--
			}
		case "down", "j":
			if p.selected < len(p.sessions)-1 {
				p.selected++
			}
		case "enter":
			if len(p.sessions) > 0 {
				p.SelectedID = p.sessions[p.selected].ID
			}
			return p, tea.Quit
		case "esc", "q", "ctrl+c":
			return p, tea.Quit
		}
	}
	return p, nil
}

func (p *SessionPicker) View() string {
	if len(p.sessions) == 0 {
		return "\nNo saved plans yet.\n\nPress [Esc] to start a new one."
	}

	var b strings.Builder
	b.WriteString(p.styles.Header.Render("Resume a plan:"))
	b.WriteString("\n\n")

	start, end := p.window()
	for i := start; i < end; i++ {
		info := p.sessions[i]
		cursor := "  "
		style := p.styles.Suggestion
		if i == p.selected {
			cursor = "▸ "
			style = p.styles.SuggestionSelected
		}
		line := fmt.Sprintf("%s%s  %s (%d messages)",
			cursor,
			info.UpdatedAt.Local().Format("Jan 02 15:04"),
			info.Title,
			info.Messages)
		b.WriteString(style.Render(truncateToWidth(line, p.width-1)))
		b.WriteString("\n")
	}

	if start > 0 || end < len(p.sessions) {
		b.WriteString(p.styles.Status.Render(fmt.Sprintf("\n[%d-%d of %d]", start+1, end, len(p.sessions))))
	}
	b.WriteString(p.styles.Status.Render("\n[↑/↓] Navigate  [Enter] Resume  [Esc] New plan"))
	return b.String()
}

// window returns the visible range, keeping the cursor centred
func (p *SessionPicker) window() (int, int) {
	visible := p.height - 6
	if visible < 1 {
		visible = 1
	}
	if visible >= len(p.sessions) {
		return 0, len(p.sessions)
	}
	start := p.selected - visible/2
	if start < 0 {
		start = 0
	}
	if start+visible > len(p.sessions) {
		start = len(p.sessions) - visible
	}
	return start, start + visible
}
