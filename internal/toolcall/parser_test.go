package toolcall

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agent-demo-webhooks/internal/common/logger"
)

func newTestParser(t *testing.T, cfg ParserConfig) *Parser {
	t.Helper()
	return NewParser(cfg, logger.NewTestLogger(t))
}

func TestParse_ToolCallLiteralScenario(t *testing.T) {
	p := newTestParser(t, ParserConfig{})

	got := p.Parse(Event{
		"event_type": "conversation_toolcall",
		"data": map[string]interface{}{
			"name": "fetch_video",
			"args": "Strategic Planning",
		},
	})

	assert.Equal(t, ParsedToolCall{
		ToolName: FetchVideo,
		Args:     map[string]interface{}{"title": "Strategic Planning"},
	}, got)
}

func TestParse_TranscriptionLiteralScenario(t *testing.T) {
	p := newTestParser(t, ParserConfig{})

	got := p.Parse(Event{
		"event_type": "application.transcription_ready",
		"data": map[string]interface{}{
			"transcript": []interface{}{
				map[string]interface{}{
					"role": "assistant",
					"tool_calls": []interface{}{
						map[string]interface{}{
							"function": map[string]interface{}{"name": "play_video", "arguments": ""},
						},
					},
				},
			},
		},
	})

	assert.Equal(t, PlayVideo, got.ToolName)
	require.NotNil(t, got.Args)
	assert.Empty(t, got.Args)
}

func TestParse_NoArgToolsAlwaysGetEmptyArgs(t *testing.T) {
	p := newTestParser(t, ParserConfig{})

	for _, tool := range KnownTools() {
		if !IsNoArgTool(tool) {
			continue
		}
		t.Run(string(tool), func(t *testing.T) {
			got := p.Parse(Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": string(tool)},
			})
			assert.Equal(t, tool, got.ToolName)
			require.NotNil(t, got.Args)
			assert.Empty(t, got.Args)
		})
	}
}

func TestParse_ToolCallBranch(t *testing.T) {
	p := newTestParser(t, ParserConfig{})

	tests := []struct {
		name string
		evt  Event
		want ParsedToolCall
	}{
		{
			name: "json object args under data.function",
			evt: Event{
				"event_type": "conversation.tool_call",
				"data": map[string]interface{}{
					"function": map[string]interface{}{
						"name":      "fetch_video",
						"arguments": `{"title":"Product Tour"}`,
					},
				},
			},
			want: ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Product Tour"}},
		},
		{
			name: "properties-nested variant",
			evt: Event{
				"event_type": "conversation.toolcall",
				"properties": map[string]interface{}{
					"name":      "fetch_video",
					"arguments": `title: "Analytics Deep Dive"`,
				},
			},
			want: ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Analytics Deep Dive"}},
		},
		{
			name: "shallowest name wins over properties",
			evt: Event{
				"event_type": "tool_call",
				"name":       "next_video",
				"properties": map[string]interface{}{"name": "pause_video"},
			},
			want: ParsedToolCall{ToolName: NextVideo, Args: map[string]interface{}{}},
		},
		{
			name: "args at another nesting level are not used",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data": map[string]interface{}{
					"function": map[string]interface{}{"name": "fetch_video"},
					"args":     "Product Tour",
				},
			},
			want: ParsedToolCall{ToolName: FetchVideo},
		},
		{
			name: "alias name is canonicalized and args dropped",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "Resume", "args": "Intro"},
			},
			want: ParsedToolCall{ToolName: PlayVideo, Args: map[string]interface{}{}},
		},
		{
			name: "canonical name with odd casing",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": " CLOSE_VIDEO "},
			},
			want: ParsedToolCall{ToolName: CloseVideo, Args: map[string]interface{}{}},
		},
		{
			name: "command in title object",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data": map[string]interface{}{
					"name": "fetch_video",
					"args": map[string]interface{}{"title": "pause"},
				},
			},
			want: ParsedToolCall{ToolName: PauseVideo, Args: map[string]interface{}{}},
		},
		{
			name: "command in bare string title",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "fetch_video", "args": "close"},
			},
			want: ParsedToolCall{ToolName: CloseVideo, Args: map[string]interface{}{}},
		},
		{
			name: "title containing a command verb",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "fetch_video", "args": "please skip to the next one"},
			},
			want: ParsedToolCall{ToolName: NextVideo, Args: map[string]interface{}{}},
		},
		{
			name: "command sentence in json title",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data": map[string]interface{}{
					"name": "fetch_video",
					"args": `{"title":"could you stop the video for a sec"}`,
				},
			},
			want: ParsedToolCall{ToolName: CloseVideo, Args: map[string]interface{}{}},
		},
		{
			name: "ordinary title",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "fetch_video", "args": "Quarterly Review"},
			},
			want: ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Quarterly Review"}},
		},
		{
			name: "fetch without args",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "fetch_video"},
			},
			want: ParsedToolCall{ToolName: FetchVideo},
		},
		{
			name: "unrecognized name passes through",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": "book_meeting", "args": `{"when":"tomorrow"}`},
			},
			want: ParsedToolCall{ToolName: "book_meeting", Args: map[string]interface{}{"when": "tomorrow"}},
		},
		{
			name: "missing name",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"args": "Intro"},
			},
			want: ParsedToolCall{},
		},
		{
			name: "name of wrong type",
			evt: Event{
				"event_type": "conversation.toolcall",
				"data":       map[string]interface{}{"name": 12},
			},
			want: ParsedToolCall{},
		},
		{
			name: "unknown event type",
			evt:  Event{"event_type": "system.replica_joined", "data": map[string]interface{}{"name": "pause_video"}},
			want: ParsedToolCall{},
		},
		{
			name: "missing event type",
			evt:  Event{"data": map[string]interface{}{"name": "pause_video"}},
			want: ParsedToolCall{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(tt.evt))
		})
	}
}

func transcriptEvent(messages ...map[string]interface{}) Event {
	list := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		list = append(list, m)
	}
	return Event{
		"event_type": "application.transcription_ready",
		"data":       map[string]interface{}{"transcript": list},
	}
}

func assistantCall(name string, args interface{}) map[string]interface{} {
	return map[string]interface{}{
		"role": "assistant",
		"tool_calls": []interface{}{
			map[string]interface{}{
				"function": map[string]interface{}{"name": name, "arguments": args},
			},
		},
	}
}

func TestParse_TranscriptionBranch(t *testing.T) {
	p := newTestParser(t, ParserConfig{})

	t.Run("last tool call wins", func(t *testing.T) {
		got := p.Parse(transcriptEvent(
			assistantCall("pause_video", ""),
			map[string]interface{}{"role": "user", "content": "ok"},
			assistantCall("next_video", ""),
			map[string]interface{}{"role": "assistant", "content": "Here you go", "tool_calls": []interface{}{}},
		))
		assert.Equal(t, NextVideo, got.ToolName)
		assert.Equal(t, map[string]interface{}{}, got.Args)
	})

	t.Run("json arguments", func(t *testing.T) {
		got := p.Parse(transcriptEvent(assistantCall("fetch_video", `{"title":"Reporting"}`)))
		assert.Equal(t, ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Reporting"}}, got)
	})

	t.Run("non-json arguments fall back", func(t *testing.T) {
		got := p.Parse(transcriptEvent(assistantCall("fetch_video", "Reporting Basics")))
		assert.Equal(t, ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Reporting Basics"}}, got)
	})

	t.Run("command in title", func(t *testing.T) {
		got := p.Parse(transcriptEvent(assistantCall("fetch_video", `{"title":"skip"}`)))
		assert.Equal(t, ParsedToolCall{ToolName: NextVideo, Args: map[string]interface{}{}}, got)
	})

	t.Run("unknown tool is dropped", func(t *testing.T) {
		got := p.Parse(transcriptEvent(assistantCall("pause", "")))
		assert.False(t, got.Found())
		assert.Nil(t, got.Args)
	})

	t.Run("user tool calls ignored", func(t *testing.T) {
		msg := assistantCall("pause_video", "")
		msg["role"] = "user"
		assert.False(t, p.Parse(transcriptEvent(msg)).Found())
	})

	t.Run("transcript of wrong type", func(t *testing.T) {
		got := p.Parse(Event{
			"event_type": "application.transcription_ready",
			"data":       map[string]interface{}{"transcript": "hello"},
		})
		assert.False(t, got.Found())
	})

	t.Run("malformed tool call entry", func(t *testing.T) {
		got := p.Parse(transcriptEvent(map[string]interface{}{
			"role":       "assistant",
			"tool_calls": []interface{}{"not-an-object"},
		}))
		assert.False(t, got.Found())
	})
}

func utteranceEvent(speech string) Event {
	return Event{
		"event_type": "conversation.utterance",
		"data":       map[string]interface{}{"speech": speech},
	}
}

func TestParse_UtteranceBranch(t *testing.T) {
	p := newTestParser(t, ParserConfig{TextFallbackEnabled: true})

	tests := []struct {
		speech string
		want   ParsedToolCall
	}{
		{"pause_video", ParsedToolCall{ToolName: PauseVideo, Args: map[string]interface{}{}}},
		{"Sure! fetch_video(\"Strategic Planning\")", ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Strategic Planning"}}},
		{"Sure (of course), calling fetch_video(\"Intro\")", ParsedToolCall{ToolName: FetchVideo, Args: map[string]interface{}{"title": "Intro"}}},
		{"note (aside) then pause_video() please", ParsedToolCall{ToolName: PauseVideo, Args: map[string]interface{}{}}},
		{"calling fetch_video(pause) now", ParsedToolCall{ToolName: PauseVideo, Args: map[string]interface{}{}}},
		{"skip()", ParsedToolCall{ToolName: NextVideo, Args: map[string]interface{}{}}},
		{"Let me pause the video for you.", ParsedToolCall{ToolName: PauseVideo, Args: map[string]interface{}{}}},
		{"I'll skip ahead (as requested) to the next video", ParsedToolCall{ToolName: NextVideo, Args: map[string]interface{}{}}},
		{"don't pause the video", ParsedToolCall{}},
		{"Thanks for joining the demo today", ParsedToolCall{}},
		{"", ParsedToolCall{}},
	}

	for _, tt := range tests {
		t.Run(tt.speech, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Parse(utteranceEvent(tt.speech)))
		})
	}
}

func TestParse_UtteranceSpeechPaths(t *testing.T) {
	p := newTestParser(t, ParserConfig{E2ETestMode: true})

	got := p.Parse(Event{
		"event_type": "utterance",
		"properties": map[string]interface{}{"speech": "close the video"},
	})
	assert.Equal(t, CloseVideo, got.ToolName)
}

func TestParse_UtteranceDisabled(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewParser(ParserConfig{Environment: "development"}, logger.NewZapAdapter(zap.New(core)))

	for _, speech := range []string{"pause", "pause_video", "close the video", "fetch_video(Intro)"} {
		assert.Equal(t, ParsedToolCall{}, p.Parse(utteranceEvent(speech)), speech)
	}
	assert.Equal(t, 1, logs.FilterMessage("Utterance event received but text fallback parsing is disabled").Len())
}

func TestParse_UtteranceDisabledSilentInProduction(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := NewParser(ParserConfig{Environment: "production"}, logger.NewZapAdapter(zap.New(core)))

	assert.False(t, p.Parse(utteranceEvent("pause")).Found())
	assert.Equal(t, 0, logs.Len())
}

func TestParse_NilAndEmptyEvents(t *testing.T) {
	p := NewParser(ParserConfig{}, nil)
	assert.Equal(t, ParsedToolCall{}, p.Parse(nil))
	assert.Equal(t, ParsedToolCall{}, p.Parse(Event{}))
	assert.Equal(t, ParsedToolCall{}, p.Parse(Event{"event_type": 42}))
}

func TestParse_ConcurrentUse(t *testing.T) {
	p := newTestParser(t, ParserConfig{TextFallbackEnabled: true})
	events := []Event{
		utteranceEvent("pause"),
		transcriptEvent(assistantCall("next_video", "")),
		{"event_type": "conversation.toolcall", "data": map[string]interface{}{"name": "fetch_video", "args": "Intro"}},
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.True(t, p.Parse(events[i%len(events)]).Found())
		}(i)
	}
	wg.Wait()
}
