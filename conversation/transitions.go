package conversation

// NewUserMessage builds a settled user message holding text verbatim.
// Rejecting blank input is the caller's job.
func NewUserMessage(gen Generator, text string) *Message {
	return &Message{
		ID:        gen.newID(),
		Sender:    SenderUser,
		Content:   text,
		Timestamp: gen.now(),
	}
}

// NewAssistantMessage builds an empty, open assistant turn.
func NewAssistantMessage(gen Generator) *Message {
	return &Message{
		ID:          gen.newID(),
		Sender:      SenderAssistant,
		Timestamp:   gen.now(),
		IsStreaming: boolPtr(true),
		ToolEvents:  []ToolInvocation{},
	}
}

// Append returns a new transcript with msg at the tail. Ordering is not
// checked here.
func Append(messages []*Message, msg *Message) []*Message {
	next := make([]*Message, len(messages), len(messages)+1)
	copy(next, messages)
	return append(next, msg)
}

// ApplyContentChunk concatenates chunk onto the last message when it is an
// assistant message. Anything else returns messages unchanged.
func ApplyContentChunk(messages []*Message, chunk string) []*Message {
	last, ok := lastAssistant(messages)
	if !ok {
		return messages
	}
	updated := last.Clone()
	updated.Content = last.Content + chunk
	return replaceLast(messages, updated)
}

// ApplyToolEvent upserts ev into the last assistant message's tool events,
// keyed by ToolUseID. A repeated id overwrites the existing entry in place.
func ApplyToolEvent(messages []*Message, ev ToolInvocation) []*Message {
	last, ok := lastAssistant(messages)
	if !ok {
		return messages
	}
	updated := last.Clone()
	ev = ev.Clone()

	replaced := false
	for i := range updated.ToolEvents {
		if updated.ToolEvents[i].ToolUseID == ev.ToolUseID {
			updated.ToolEvents[i] = ev
			replaced = true
			break
		}
	}
	if !replaced {
		updated.ToolEvents = append(updated.ToolEvents, ev)
	}
	return replaceLast(messages, updated)
}

// CompleteStreaming settles the last assistant message. Content and tool
// events carry over untouched.
func CompleteStreaming(messages []*Message) []*Message {
	last, ok := lastAssistant(messages)
	if !ok {
		return messages
	}
	updated := last.Clone()
	updated.IsStreaming = boolPtr(false)
	return replaceLast(messages, updated)
}

// ShouldShowSuggestions reports whether the example prompts should be
// offered, which is only before anything has been said.
func ShouldShowSuggestions(messages []*Message) bool {
	return len(messages) == 0
}

// Last returns the tail of the transcript.
func Last(messages []*Message) (*Message, bool) {
	if len(messages) == 0 {
		return nil, false
	}
	return messages[len(messages)-1], true
}

// OpenTurn returns the assistant message still receiving chunks, if any.
func OpenTurn(messages []*Message) (*Message, bool) {
	last, ok := Last(messages)
	if !ok || !last.Streaming() {
		return nil, false
	}
	return last, true
}

func lastAssistant(messages []*Message) (*Message, bool) {
	last, ok := Last(messages)
	if !ok || !last.IsAssistant() {
		return nil, false
	}
	return last, true
}

// replaceLast shares the unchanged prefix pointers with messages.
func replaceLast(messages []*Message, msg *Message) []*Message {
	next := make([]*Message, len(messages))
	copy(next, messages[:len(messages)-1])
	next[len(next)-1] = msg
	return next
}
