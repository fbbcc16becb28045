package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nachoal/planchat-go/conversation"
	"github.com/nachoal/planchat-go/history"
	"github.com/nachoal/planchat-go/mockserver"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAskRecordReplayAndList(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := httptest.NewServer(mockserver.New(mockserver.Options{}).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	recording := filepath.Join(t.TempDir(), "ask.jsonl")

	out, err := execute(t, "ask", "--backend", url, "--record", recording, "Plan a QBR")
	require.NoError(t, err)
	assert.Contains(t, out, "Here is a draft plan for: Plan a QBR")

	out, err = execute(t, "replay", "--json", recording)
	require.NoError(t, err)

	var tr history.Transcript
	require.NoError(t, json.Unmarshal([]byte(out), &tr))
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, "Plan a QBR", tr.Messages[0].Content)
	assistant := tr.Messages[1]
	assert.Equal(t, "Here is a draft plan for: Plan a QBR", assistant.Content)
	assert.False(t, assistant.Streaming())
	require.Len(t, assistant.ToolEvents, 1)
	assert.Equal(t, conversation.ToolStatusComplete, assistant.ToolEvents[0].Status)
	assert.Equal(t, "3 matching playbooks", assistant.ToolEvents[0].Output)

	out, err = execute(t, "sessions", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan a QBR")
	assert.Contains(t, out, "MESSAGES")
}

func TestAskReportsBackendError(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := httptest.NewServer(mockserver.New(mockserver.Options{}).Handler())
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	out, err := execute(t, "ask", "--backend", url, "--record", "", "--no-save", mockserver.FailTrigger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mock backend failure")
	assert.Contains(t, out, "Let me check")
}

func TestToolLine(t *testing.T) {
	running := conversation.ToolInvocation{
		ToolName: "crm_lookup",
		Status:   conversation.ToolStatusRunning,
		Input:    map[string]interface{}{"seats": 20, "account": "Acme"},
	}
	assert.Equal(t, "🔧 crm_lookup (running…) (account=Acme, seats=20)", toolLine(running))

	done := conversation.ToolInvocation{
		ToolName: "crm_lookup",
		Status:   conversation.ToolStatusComplete,
		Output:   "120\nseats",
	}
	assert.Equal(t, "✓ crm_lookup → 120 seats", toolLine(done))
}

func TestPrintTranscript(t *testing.T) {
	gen := conversation.Generator{IDs: &conversation.SequenceIDs{Prefix: "m"}}
	msgs := conversation.Append(nil, conversation.NewUserMessage(gen, "hi"))
	msgs = conversation.Append(msgs, conversation.NewAssistantMessage(gen))
	msgs = conversation.ApplyContentChunk(msgs, "hello")

	var b bytes.Buffer
	printTranscript(&b, msgs)
	assert.Equal(t, "👤 You: hi\n\n🤖 Assistant:\nhello\n", b.String())
}
