// Package toolcall turns provider webhook events into one of the canonical
// demo tool commands.
//
// Everything here is pure and synchronous. The alias tables and rule sets
// are package-level read-only data, so a single Parser can be shared by all
// concurrent webhook requests.
package toolcall

import "strings"

// ToolName identifies a tool the demo UI understands.
type ToolName string

const (
	FetchVideo   ToolName = "fetch_video"
	PauseVideo   ToolName = "pause_video"
	PlayVideo    ToolName = "play_video"
	NextVideo    ToolName = "next_video"
	CloseVideo   ToolName = "close_video"
	ShowTrialCTA ToolName = "show_trial_cta"
)

var knownTools = []ToolName{FetchVideo, PauseVideo, PlayVideo, NextVideo, CloseVideo, ShowTrialCTA}

// KnownTools returns the canonical tool set in a stable order.
func KnownTools() []ToolName {
	out := make([]ToolName, len(knownTools))
	copy(out, knownTools)
	return out
}

// IsKnownTool reports whether name is one of the canonical identifiers.
// The comparison is exact; callers normalize case first when appropriate.
func IsKnownTool(name string) bool {
	for _, t := range knownTools {
		if string(t) == name {
			return true
		}
	}
	return false
}

// IsNoArgTool reports whether the tool takes no semantic arguments.
func IsNoArgTool(name ToolName) bool {
	return name != FetchVideo && IsKnownTool(string(name))
}

// Event is a decoded webhook body. No schema is guaranteed.
type Event map[string]interface{}

// EventType returns event_type, or "" when absent or not a string.
func (e Event) EventType() string {
	s, _ := e["event_type"].(string)
	return s
}

// ConversationID returns conversation_id, falling back to data.conversation_id.
func (e Event) ConversationID() string {
	if s, ok := e["conversation_id"].(string); ok && s != "" {
		return s
	}
	if data, ok := e["data"].(map[string]interface{}); ok {
		if s, ok := data["conversation_id"].(string); ok {
			return s
		}
	}
	return ""
}

// Data returns the data object or nil.
func (e Event) Data() map[string]interface{} {
	data, _ := e["data"].(map[string]interface{})
	return data
}

// ParsedToolCall is the parser output. An empty ToolName means nothing was
// detected; in that case Args is nil. No-arg tools always carry a non-nil
// (possibly empty) Args map.
type ParsedToolCall struct {
	ToolName ToolName               `json:"toolName"`
	Args     map[string]interface{} `json:"toolArgs"`
}

// Found reports whether a tool was detected.
func (p ParsedToolCall) Found() bool {
	return p.ToolName != ""
}

// IsCanonical reports whether the detected tool is in the canonical set.
func (p ParsedToolCall) IsCanonical() bool {
	return IsKnownTool(string(p.ToolName))
}

func notFound() ParsedToolCall {
	return ParsedToolCall{}
}

func noArgCall(name ToolName) ParsedToolCall {
	return ParsedToolCall{ToolName: name, Args: map[string]interface{}{}}
}

// normalizeToolName lowercases and trims a raw tool name so canonical
// identifiers sent with odd casing are still recognized.
func normalizeToolName(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
