package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/tui/styles"
)

const (
	maxToolArgDisplayLen    = 40
	maxToolOutputDisplayLen = 80
	minWrapWidth            = 20
)

// transcriptRenderer turns messages into the text shown in the viewport
type transcriptRenderer struct {
	styles   *styles.Styles
	markdown *glamour.TermRenderer
	width    int

	// settled messages never change, so their rendering is keyed by pointer
	cache map[*conversation.Message]string
}

func newTranscriptRenderer(s *styles.Styles, width int) *transcriptRenderer {
	r := &transcriptRenderer{styles: s, cache: make(map[*conversation.Message]string)}
	r.setWidth(width)
	return r
}

func (r *transcriptRenderer) setWidth(width int) {
	if width < minWrapWidth {
		width = minWrapWidth
	}
	if width == r.width && r.markdown != nil {
		return
	}
	r.width = width
	// notty keeps assistant text readable on light and dark terminals
	md, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		md = nil
	}
	r.markdown = md
	r.cache = make(map[*conversation.Message]string)
}

// render draws the full transcript. spin is shown after an open turn.
func (r *transcriptRenderer) render(messages []*conversation.Message, spin string) string {
	if len(messages) == 0 {
		r.cache = make(map[*conversation.Message]string)
		return ""
	}
	blocks := make([]string, 0, len(messages))
	for _, m := range messages {
		switch m.Sender {
		case conversation.SenderUser:
			blocks = append(blocks, r.user(m.Content))
		case conversation.SenderAssistant:
			if m.Streaming() {
				blocks = append(blocks, r.assistant(m, spin))
				continue
			}
			block, ok := r.cache[m]
			if !ok {
				block = r.assistant(m, "")
				r.cache[m] = block
			}
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (r *transcriptRenderer) user(content string) string {
	text := wordwrap.String(content, r.width-8)
	return fmt.Sprintf("%s %s", r.styles.UserLabel.Render("👤 You:"), r.styles.UserText.Render(text))
}

func (r *transcriptRenderer) assistant(m *conversation.Message, spin string) string {
	var b strings.Builder
	b.WriteString("🤖 Assistant:")

	for _, ev := range m.ToolEvents {
		b.WriteString("\n")
		b.WriteString(r.tool(ev))
	}

	if m.Streaming() {
		if m.Content != "" {
			b.WriteString("\n")
			b.WriteString(r.styles.Assistant.Render(wordwrap.String(m.Content, r.width)))
		}
		if spin != "" {
			b.WriteString("\n")
			b.WriteString(spin)
		}
		return b.String()
	}

	if m.Content == "" {
		return b.String()
	}
	b.WriteString("\n")
	b.WriteString(r.settled(m.Content))
	return b.String()
}

func (r *transcriptRenderer) settled(content string) string {
	if r.markdown != nil {
		rendered, err := r.markdown.Render(content)
		if err == nil {
			return strings.Trim(rendered, "\n")
		}
	}
	// Fallback without glamour
	return wordwrap.String(content, r.width)
}

func (r *transcriptRenderer) tool(ev conversation.ToolInvocation) string {
	args := formatArguments(ev.Input)
	if args != "" {
		args = " " + r.styles.ToolArgs.Render(args)
	}
	if ev.Status == conversation.ToolStatusComplete {
		line := fmt.Sprintf("✓ %s", ev.ToolName)
		if out := singleLine(ev.Output); out != "" {
			line += " → " + truncateToWidth(out, maxToolOutputDisplayLen)
		}
		return r.styles.ToolDone.Render(line) + args
	}
	return r.styles.ToolRunning.Render(fmt.Sprintf("🔧 %s (running…)", ev.ToolName)) + args
}

// formatArguments formats tool input as (k=v, ...) with keys sorted
func formatArguments(args map[string]interface{}) string {
	if len(args) == 0 {
		return ""
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := singleLine(fmt.Sprintf("%v", args[k]))
		parts = append(parts, fmt.Sprintf("%s=%s", k, truncateToWidth(v, maxToolArgDisplayLen)))
	}

	return fmt.Sprintf("(%s)", strings.Join(parts, ", "))
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateToWidth(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
