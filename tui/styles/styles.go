package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette holds the adaptive colors used across the chat view
type Palette struct {
	Primary lipgloss.AdaptiveColor
	Text    lipgloss.AdaptiveColor
	TextDim lipgloss.AdaptiveColor
	Border  lipgloss.AdaptiveColor
	Success lipgloss.AdaptiveColor
	Warning lipgloss.AdaptiveColor
	Error   lipgloss.AdaptiveColor
	Select  lipgloss.AdaptiveColor
}

var DefaultPalette = Palette{
	Primary: lipgloss.AdaptiveColor{Light: "#1F6FB2", Dark: "#5FAFFF"},
	Text:    lipgloss.AdaptiveColor{Light: "#1E1E1E", Dark: "#E0E0E0"},
	TextDim: lipgloss.AdaptiveColor{Light: "#666666", Dark: "#8A8A8A"},
	Border:  lipgloss.AdaptiveColor{Light: "#BDBDBD", Dark: "#5C5C5C"},
	Success: lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#66BB6A"},
	Warning: lipgloss.AdaptiveColor{Light: "#E65100", Dark: "#FFB74D"},
	Error:   lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#EF5350"},
	Select:  lipgloss.AdaptiveColor{Light: "#D7E9F7", Dark: "#3A3F58"},
}

// Styles holds all the styles for the chat view
type Styles struct {
	Palette Palette

	Header      lipgloss.Style
	UserLabel   lipgloss.Style
	UserText    lipgloss.Style
	Assistant   lipgloss.Style
	ToolRunning lipgloss.Style
	ToolDone    lipgloss.Style
	ToolArgs    lipgloss.Style
	Error       lipgloss.Style
	Notice      lipgloss.Style
	Status      lipgloss.Style
	InputBorder lipgloss.Style
	Spinner     lipgloss.Style

	Suggestion         lipgloss.Style
	SuggestionSelected lipgloss.Style
}

// New creates the styles for palette p
func New(p Palette) *Styles {
	s := &Styles{Palette: p}

	s.Header = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)

	s.UserLabel = lipgloss.NewStyle().
		Foreground(p.Primary).
		Bold(true)

	s.UserText = lipgloss.NewStyle().
		Foreground(p.Text)

	s.Assistant = lipgloss.NewStyle().
		Foreground(p.Text)

	s.ToolRunning = lipgloss.NewStyle().
		Foreground(p.Warning).
		Italic(true)

	s.ToolDone = lipgloss.NewStyle().
		Foreground(p.Success).
		Italic(true)

	s.ToolArgs = lipgloss.NewStyle().
		Foreground(p.TextDim).
		Italic(true)

	s.Error = lipgloss.NewStyle().
		Foreground(p.Error).
		Bold(true)

	s.Notice = lipgloss.NewStyle().
		Foreground(p.Warning).
		Bold(true)

	s.Status = lipgloss.NewStyle().
		Foreground(p.TextDim)

	s.InputBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border).
		PaddingLeft(1).
		PaddingRight(1)

	s.Spinner = lipgloss.NewStyle().
		Foreground(p.Primary)

	s.Suggestion = lipgloss.NewStyle().
		Foreground(p.TextDim)

	s.SuggestionSelected = lipgloss.NewStyle().
		Foreground(p.Text).
		Background(p.Select)

	return s
}

// Default returns the styles for DefaultPalette
func Default() *Styles {
	return New(DefaultPalette)
}
