package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/muesli/reflow/wordwrap"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
)

const transcriptWrapWidth = 100

func toolLine(tool conversation.ToolInvocation) string {
	if tool.Status == conversation.ToolStatusComplete {
		line := fmt.Sprintf("✓ %s", tool.ToolName)
		if out := strings.Join(strings.Fields(tool.Output), " "); out != "" {
			line += " → " + out
		}
		return line
	}
	line := fmt.Sprintf("🔧 %s (running…)", tool.ToolName)
	if len(tool.Input) > 0 {
		keys := make([]string, 0, len(tool.Input))
		for k := range tool.Input {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, tool.Input[k]))
		}
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	return line
}

func printTranscript(w io.Writer, msgs []*conversation.Message) {
	for i, m := range msgs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		switch m.Sender {
		case conversation.SenderUser:
			fmt.Fprintf(w, "👤 You: %s\n", m.Content)
		case conversation.SenderAssistant:
			fmt.Fprintln(w, "🤖 Assistant:")
			for _, ev := range m.ToolEvents {
				fmt.Fprintf(w, "  %s\n", toolLine(ev))
			}
			if m.Content != "" {
				fmt.Fprintln(w, wordwrap.String(m.Content, transcriptWrapWidth))
			}
		}
	}
}

func printTranscriptList(w io.Writer, infos []history.TranscriptInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMESSAGES\tTITLE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			info.ID,
			info.UpdatedAt.Local().Format(time.DateTime),
			info.Messages,
			info.Title)
	}
	return tw.Flush()
}
