package conversation

// Phase is the state of the conversation slot, derived from the transcript
// rather than stored.
type Phase int

const (
	// PhaseIdle means no assistant turn has been opened yet
	PhaseIdle Phase = iota
	// PhaseAwaitingFirstChunk means a turn is open but nothing has arrived
	PhaseAwaitingFirstChunk
	// PhaseStreaming means an open turn has received content or tool events
	PhaseStreaming
	// PhaseSettled means the last assistant turn was completed
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingFirstChunk:
		return "awaiting-first-chunk"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// PhaseOf derives the slot phase. A trailing user message counts as idle
// since no turn is open for it.
func PhaseOf(messages []*Message) Phase {
	last, ok := Last(messages)
	if !ok || !last.IsAssistant() {
		return PhaseIdle
	}
	if !last.Streaming() {
		return PhaseSettled
	}
	if last.Content == "" && len(last.ToolEvents) == 0 {
		return PhaseAwaitingFirstChunk
	}
	return PhaseStreaming
}

// Accepting reports whether a new user message may be appended, i.e. no
// assistant turn is open.
func Accepting(messages []*Message) bool {
	_, open := OpenTurn(messages)
	return !open
}
