package toolcall

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"agent-demo-webhooks/internal/common/logger"
)

// ParserConfig carries the flags read once at startup.
type ParserConfig struct {
	// TextFallbackEnabled turns on free-text utterance parsing.
	TextFallbackEnabled bool
	// E2ETestMode also enables utterance parsing for test harnesses.
	E2ETestMode bool
	// Environment suppresses the disabled-fallback warning when "production".
	Environment string
}

// UtteranceEnabled reports whether the utterance branch is active.
func (c ParserConfig) UtteranceEnabled() bool {
	return c.TextFallbackEnabled || c.E2ETestMode
}

// Parser extracts a canonical tool call from a webhook event. It holds no
// per-call state and may be shared across goroutines.
type Parser struct {
	cfg         ParserConfig
	log         logger.Logger
	warnOnce    sync.Once
	funcPattern *regexp.Regexp
}

var functionCallPattern = regexp.MustCompile(`([A-Za-z_][A-Za-z0-9_]*)\s*\(([^()]*)\)`)

func NewParser(cfg ParserConfig, log logger.Logger) *Parser {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Parser{
		cfg:         cfg,
		log:         log,
		funcPattern: functionCallPattern,
	}
}

// Parse returns the tool call carried by evt, or a zero ParsedToolCall.
// It never panics.
func (p *Parser) Parse(evt Event) (result ParsedToolCall) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("Recovered from panic while parsing tool call", map[string]interface{}{
				"panic":     fmt.Sprint(r),
				"eventType": evt.EventType(),
			})
			result = notFound()
		}
	}()

	if evt == nil {
		return notFound()
	}

	kind := ClassifyEventType(evt.EventType())
	switch kind {
	case KindToolCall:
		result = p.parseToolCallEvent(evt)
	case KindTranscription:
		result = p.parseTranscription(evt)
	case KindUtterance:
		result = p.parseUtterance(evt)
	default:
		return notFound()
	}

	if result.Found() {
		p.log.Debug("Tool call parsed", map[string]interface{}{
			"eventType": evt.EventType(),
			"branch":    kind.String(),
			"tool":      string(result.ToolName),
		})
	}
	return result
}

func (p *Parser) parseToolCallEvent(evt Event) ParsedToolCall {
	root := map[string]interface{}(evt)
	rawName, baseIndex := firstString(root, NamePaths())
	if rawName == "" {
		return notFound()
	}
	return resolve(rawName, toolCallArgs(root, baseIndex))
}

// resolve applies the known-tool guard, alias canonicalization, argument
// extraction and command-in-title remapping to a raw name and raw args.
func resolve(rawName string, rawArgs interface{}) ParsedToolCall {
	name := normalizeToolName(rawName)
	if !IsKnownTool(name) {
		if tool, ok := Canonicalize(rawName); ok {
			return noArgCall(tool)
		}
		// Unrecognized names pass through untouched; dispatch ignores them.
		return ParsedToolCall{
			ToolName: ToolName(strings.TrimSpace(rawName)),
			Args:     ExtractArgs(rawArgs, ""),
		}
	}

	tool := ToolName(name)
	args := ExtractArgs(rawArgs, tool)
	return finalize(tool, args)
}

func finalize(tool ToolName, args map[string]interface{}) ParsedToolCall {
	if tool == FetchVideo {
		if title, ok := TitleFromArgs(args); ok {
			if remapped, ok := RemapCommandTitle(title); ok {
				return noArgCall(remapped)
			}
		}
	}
	if args == nil && IsNoArgTool(tool) {
		args = map[string]interface{}{}
	}
	return ParsedToolCall{ToolName: tool, Args: args}
}

// parseTranscription takes the most recent assistant message carrying
// tool_calls. Only canonical names are accepted from transcripts.
func (p *Parser) parseTranscription(evt Event) ParsedToolCall {
	root := map[string]interface{}(evt)

	var transcript []interface{}
	for _, path := range transcriptPaths {
		if v, ok := path.Lookup(root); ok {
			if list, ok := v.([]interface{}); ok {
				transcript = list
				break
			}
		}
	}
	if len(transcript) == 0 {
		return notFound()
	}

	var last map[string]interface{}
	for _, entry := range transcript {
		msg, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		if role, _ := msg["role"].(string); role != "assistant" {
			continue
		}
		calls, ok := msg["tool_calls"].([]interface{})
		if !ok || len(calls) == 0 {
			continue
		}
		last = msg
	}
	if last == nil {
		return notFound()
	}

	call, _ := last["tool_calls"].([]interface{})[0].(map[string]interface{})
	fn, _ := call["function"].(map[string]interface{})
	rawName, _ := fn["name"].(string)
	name := normalizeToolName(rawName)
	if !IsKnownTool(name) {
		p.log.Debug("Ignoring unknown tool in transcript", map[string]interface{}{
			"tool": rawName,
		})
		return notFound()
	}

	return finalize(ToolName(name), ExtractArgs(fn["arguments"], ToolName(name)))
}

func (p *Parser) parseUtterance(evt Event) ParsedToolCall {
	if !p.cfg.UtteranceEnabled() {
		if p.cfg.Environment != "production" {
			p.warnOnce.Do(func() {
				p.log.Warn("Utterance event received but text fallback parsing is disabled", map[string]interface{}{
					"eventType": evt.EventType(),
					"hint":      "set NEXT_PUBLIC_TAVUS_TOOLCALL_TEXT_FALLBACK=true to enable",
				})
			})
		}
		return notFound()
	}

	speech, _ := firstString(map[string]interface{}(evt), speechPaths)
	speech = strings.TrimSpace(speech)
	if speech == "" || len(speech) > MaxUtteranceLength {
		return notFound()
	}

	if literal := normalizeToolName(speech); IsKnownTool(literal) {
		return finalize(ToolName(literal), map[string]interface{}{})
	}

	for _, m := range p.funcPattern.FindAllStringSubmatch(speech, -1) {
		if call, ok := resolveFunctionCall(m[1], m[2]); ok {
			return call
		}
	}

	if tool, ok := MapUtterance(speech); ok {
		return noArgCall(tool)
	}
	return notFound()
}

// resolveFunctionCall handles a name(args) fragment found in speech. Names
// that are neither canonical nor aliases are rejected so the sentence can
// still be matched as natural language.
func resolveFunctionCall(rawName, rawArgs string) (ParsedToolCall, bool) {
	name := normalizeToolName(rawName)
	if IsKnownTool(name) {
		tool := ToolName(name)
		return finalize(tool, ExtractArgs(rawArgs, tool)), true
	}
	if tool, ok := Canonicalize(rawName); ok {
		return noArgCall(tool), true
	}
	return ParsedToolCall{}, false
}
