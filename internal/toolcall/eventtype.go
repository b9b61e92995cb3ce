package toolcall

import "strings"

// EventKind selects the parsing strategy for an event.
type EventKind int

const (
	KindUnknown EventKind = iota
	KindToolCall
	KindTranscription
	KindUtterance
)

func (k EventKind) String() string {
	switch k {
	case KindToolCall:
		return "tool_call"
	case KindTranscription:
		return "transcription"
	case KindUtterance:
		return "utterance"
	default:
		return "unknown"
	}
}

var eventTypeReplacer = strings.NewReplacer(".", "_", "-", "_")

// NormalizeEventType lowercases raw and maps '.' and '-' to '_'.
func NormalizeEventType(raw string) string {
	return eventTypeReplacer.Replace(strings.ToLower(strings.TrimSpace(raw)))
}

// ClassifyEventType decides which branch handles an event. Tool-call
// checks run first, then transcription, then utterance.
func ClassifyEventType(raw string) EventKind {
	t := NormalizeEventType(raw)
	if t == "" {
		return KindUnknown
	}

	switch {
	case isToolCallType(t):
		return KindToolCall
	case t == "application_transcription_ready" || strings.Contains(t, "transcription"):
		return KindTranscription
	case t == "conversation_utterance" || t == "utterance" || strings.Contains(t, "utterance"):
		return KindUtterance
	default:
		return KindUnknown
	}
}

func isToolCallType(t string) bool {
	switch t {
	case "conversation_toolcall", "conversation_tool_call", "tool_call":
		return true
	}
	return strings.HasSuffix(t, "_toolcall") ||
		strings.HasSuffix(t, "_tool_call") ||
		strings.Contains(t, "tool_call")
}
