package conversation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func testGenerator() Generator {
	return Generator{Clock: FixedClock{T: testTime}, IDs: &SequenceIDs{}}
}

// openTurn returns a transcript of one user message followed by an open
// assistant placeholder.
func openTurn(gen Generator, text string) []*Message {
	msgs := Append(nil, NewUserMessage(gen, text))
	return Append(msgs, NewAssistantMessage(gen))
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage(testGenerator(), "Hello")

	assert.Equal(t, SenderUser, msg.Sender)
	assert.Equal(t, "Hello", msg.Content)
	assert.Nil(t, msg.IsStreaming)
	assert.False(t, msg.Streaming())
	assert.Equal(t, "msg-1", msg.ID)
	assert.Equal(t, testTime, msg.Timestamp)
	assert.Empty(t, msg.ToolEvents)
}

func TestNewAssistantMessage(t *testing.T) {
	msg := NewAssistantMessage(testGenerator())

	assert.Equal(t, SenderAssistant, msg.Sender)
	assert.Equal(t, "", msg.Content)
	require.NotNil(t, msg.IsStreaming)
	assert.True(t, *msg.IsStreaming)
	assert.NotNil(t, msg.ToolEvents)
	assert.Len(t, msg.ToolEvents, 0)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	gen := DefaultGenerator()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewUserMessage(gen, "x").ID
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestZeroGeneratorFallsBackToDefaults(t *testing.T) {
	msg := NewAssistantMessage(Generator{})
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
}

func TestTransitionsDoNotMutateInput(t *testing.T) {
	gen := testGenerator()
	msgs := openTurn(gen, "plan a migration")
	msgs = ApplyContentChunk(msgs, "Sure")

	userBefore := *msgs[0]
	assistantBefore := msgs[1].Clone()
	lastPtr := msgs[1]

	transitions := map[string]func([]*Message) []*Message{
		"chunk":    func(m []*Message) []*Message { return ApplyContentChunk(m, ", here") },
		"tool":     func(m []*Message) []*Message { return ApplyToolEvent(m, ToolInvocation{ToolUseID: "t1", ToolName: "search", Status: ToolStatusRunning}) },
		"complete": CompleteStreaming,
		"append":   func(m []*Message) []*Message { return Append(m, NewUserMessage(gen, "next")) },
	}

	for name, f := range transitions {
		t.Run(name, func(t *testing.T) {
			next := f(msgs)

			assert.Len(t, msgs, 2)
			assert.Same(t, lastPtr, msgs[1])
			assert.Equal(t, userBefore, *msgs[0])
			assert.Equal(t, assistantBefore, msgs[1])
			assert.Same(t, msgs[0], next[0], "prefix must be shared")
		})
	}
}

func TestApplyContentChunkConcatenatesInOrder(t *testing.T) {
	msgs := openTurn(testGenerator(), "hi")
	chunks := []string{"Hi", " there", "", ", how", " can I help?"}
	for _, c := range chunks {
		msgs = ApplyContentChunk(msgs, c)
	}

	last, ok := Last(msgs)
	require.True(t, ok)
	assert.Equal(t, strings.Join(chunks, ""), last.Content)
	assert.True(t, last.Streaming())
}

func TestApplyContentChunkReplacesTail(t *testing.T) {
	msgs := openTurn(testGenerator(), "hi")
	next := ApplyContentChunk(msgs, "Hi")

	assert.NotSame(t, msgs[1], next[1])
	assert.Equal(t, msgs[1].ID, next[1].ID)
	assert.Equal(t, "", msgs[1].Content)
}

func TestApplyContentChunkZeroLengthStillCopies(t *testing.T) {
	msgs := openTurn(testGenerator(), "hi")
	next := ApplyContentChunk(msgs, "")

	assert.Equal(t, msgs[1].Content, next[1].Content)
	assert.NotSame(t, msgs[1], next[1])
}

func TestApplyContentChunkWithoutAssistantIsNoop(t *testing.T) {
	assert.Empty(t, ApplyContentChunk(nil, "orphan"))
	assert.Equal(t, []*Message{}, ApplyContentChunk([]*Message{}, "orphan"))

	user := NewUserMessage(testGenerator(), "question")
	msgs := []*Message{user}
	next := ApplyContentChunk(msgs, "x")

	require.Len(t, next, 1)
	assert.Same(t, user, next[0])
	assert.Equal(t, "question", next[0].Content)
}

func TestApplyToolEventUpserts(t *testing.T) {
	msgs := openTurn(testGenerator(), "find accounts")
	msgs = ApplyToolEvent(msgs, ToolInvocation{
		ToolName:  "search",
		ToolUseID: "t1",
		Status:    ToolStatusRunning,
		Input:     map[string]interface{}{"query": "acme"},
	})
	msgs = ApplyToolEvent(msgs, ToolInvocation{
		ToolName:  "search",
		ToolUseID: "t1",
		Status:    ToolStatusComplete,
		Output:    "3 results",
	})

	events := msgs[1].ToolEvents
	require.Len(t, events, 1)
	assert.Equal(t, ToolStatusComplete, events[0].Status)
	assert.Equal(t, "3 results", events[0].Output)
}

func TestApplyToolEventKeepsRelativeOrder(t *testing.T) {
	msgs := openTurn(testGenerator(), "compare")
	for _, id := range []string{"a", "b", "c"} {
		msgs = ApplyToolEvent(msgs, ToolInvocation{ToolName: "lookup", ToolUseID: id, Status: ToolStatusRunning})
	}
	before := msgs
	msgs = ApplyToolEvent(msgs, ToolInvocation{ToolName: "lookup", ToolUseID: "b", Status: ToolStatusComplete, Output: "ok"})

	events := msgs[1].ToolEvents
	require.Len(t, events, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{events[0].ToolUseID, events[1].ToolUseID, events[2].ToolUseID})
	assert.Equal(t, ToolStatusComplete, events[1].Status)
	assert.Equal(t, ToolStatusRunning, before[1].ToolEvents[1].Status)
}

func TestApplyToolEventDoesNotAliasInput(t *testing.T) {
	input := map[string]interface{}{"region": "emea"}
	msgs := openTurn(testGenerator(), "q")
	msgs = ApplyToolEvent(msgs, ToolInvocation{ToolName: "crm", ToolUseID: "t1", Status: ToolStatusRunning, Input: input})

	input["region"] = "apac"
	assert.Equal(t, "emea", msgs[1].ToolEvents[0].Input["region"])
}

func TestApplyToolEventWithoutAssistantIsNoop(t *testing.T) {
	ev := ToolInvocation{ToolName: "search", ToolUseID: "t1", Status: ToolStatusRunning}
	assert.Empty(t, ApplyToolEvent(nil, ev))

	msgs := []*Message{NewUserMessage(testGenerator(), "q")}
	next := ApplyToolEvent(msgs, ev)
	require.Len(t, next, 1)
	assert.Same(t, msgs[0], next[0])
}

func TestCompleteStreamingOnlyFlipsFlag(t *testing.T) {
	msgs := openTurn(testGenerator(), "q")
	msgs = ApplyContentChunk(msgs, "done")
	msgs = ApplyToolEvent(msgs, ToolInvocation{ToolName: "search", ToolUseID: "t1", Status: ToolStatusComplete, Output: "x"})

	before := msgs[1]
	next := CompleteStreaming(msgs)
	after := next[1]

	require.NotNil(t, after.IsStreaming)
	assert.False(t, *after.IsStreaming)
	assert.True(t, before.Streaming())
	assert.Equal(t, before.Content, after.Content)
	assert.Equal(t, before.ToolEvents, after.ToolEvents)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.Timestamp, after.Timestamp)
}

func TestCompleteStreamingWithoutAssistantIsNoop(t *testing.T) {
	assert.Empty(t, CompleteStreaming(nil))

	msgs := []*Message{NewUserMessage(testGenerator(), "q")}
	assert.Same(t, msgs[0], CompleteStreaming(msgs)[0])
}

func TestShouldShowSuggestions(t *testing.T) {
	gen := testGenerator()
	var msgs []*Message
	assert.True(t, ShouldShowSuggestions(msgs))
	assert.True(t, ShouldShowSuggestions([]*Message{}))

	msgs = Append(msgs, NewUserMessage(gen, "Hello"))
	assert.False(t, ShouldShowSuggestions(msgs))

	msgs = Append(msgs, NewAssistantMessage(gen))
	msgs = ApplyContentChunk(msgs, "Hi")
	msgs = CompleteStreaming(msgs)
	assert.False(t, ShouldShowSuggestions(msgs))
}

func TestTwoFullCycles(t *testing.T) {
	gen := testGenerator()
	var msgs []*Message

	for _, q := range []string{"first", "second"} {
		msgs = Append(msgs, NewUserMessage(gen, q))
		msgs = Append(msgs, NewAssistantMessage(gen))
		msgs = ApplyContentChunk(msgs, "re: "+q)
		msgs = CompleteStreaming(msgs)
	}

	require.Len(t, msgs, 4)
	assert.Equal(t, SenderUser, msgs[0].Sender)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "re: first", msgs[1].Content)
	assert.False(t, msgs[1].Streaming())
	assert.Equal(t, "second", msgs[2].Content)
	assert.Equal(t, "re: second", msgs[3].Content)
	assert.False(t, msgs[3].Streaming())
	assert.Equal(t, []string{"msg-1", "msg-2", "msg-3", "msg-4"},
		[]string{msgs[0].ID, msgs[1].ID, msgs[2].ID, msgs[3].ID})
}

func TestPhaseOf(t *testing.T) {
	gen := testGenerator()
	var msgs []*Message
	assert.Equal(t, PhaseIdle, PhaseOf(msgs))
	assert.True(t, Accepting(msgs))

	msgs = Append(msgs, NewUserMessage(gen, "q"))
	assert.Equal(t, PhaseIdle, PhaseOf(msgs))

	msgs = Append(msgs, NewAssistantMessage(gen))
	assert.Equal(t, PhaseAwaitingFirstChunk, PhaseOf(msgs))
	assert.False(t, Accepting(msgs))

	msgs = ApplyToolEvent(msgs, ToolInvocation{ToolName: "search", ToolUseID: "t1", Status: ToolStatusRunning})
	assert.Equal(t, PhaseStreaming, PhaseOf(msgs))

	msgs = CompleteStreaming(msgs)
	assert.Equal(t, PhaseSettled, PhaseOf(msgs))
	assert.True(t, Accepting(msgs))
	assert.Equal(t, "settled", PhaseOf(msgs).String())
}
