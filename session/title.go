package session

import (
	"strings"

	"github.com/nachoal/planchat-go/conversation"
)

const maxTitleLen = 50

// Title returns the first line of the first user message, shortened to
// fit a session list, or "" when nothing has been asked yet.
func Title(messages []*conversation.Message) string {
	for _, msg := range messages {
		if msg.Sender != conversation.SenderUser {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if idx := strings.IndexByte(content, '\n'); idx != -1 {
			content = content[:idx]
		}
		runes := []rune(content)
		if len(runes) > maxTitleLen {
			content = string(runes[:maxTitleLen-3]) + "..."
		}
		return content
	}
	return ""
}
