package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

// titleKeys are the argument keys that may carry a video title, in the
// order they are consulted.
var titleKeys = []string{"title", "video_title", "videoName", "video_name"}

var titleKeyPattern = regexp.MustCompile(
	`(?i)\b(?:title|video_title|videoname|video_name)\b\s*[:=]\s*(?:"([^"]*)"|'([^']*)')`,
)

// ExtractArgs normalizes a weakly typed arguments value. It never fails:
// unusable input yields nil, or an empty map for no-arg tools.
func ExtractArgs(raw interface{}, tool ToolName) map[string]interface{} {
	switch v := raw.(type) {
	case nil:
		return emptyArgs(tool)
	case map[string]interface{}:
		return v
	case Event:
		return map[string]interface{}(v)
	case []byte:
		return extractFromString(string(v), tool)
	case json.RawMessage:
		return extractFromString(string(v), tool)
	case string:
		return extractFromString(v, tool)
	default:
		return nil
	}
}

func extractFromString(raw string, tool ToolName) map[string]interface{} {
	s := strings.TrimSpace(raw)
	if s == "" {
		return emptyArgs(tool)
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(s), &parsed); err == nil {
		switch p := parsed.(type) {
		case string:
			title := stripQuotes(p)
			if title == "" {
				return emptyArgs(tool)
			}
			return map[string]interface{}{"title": title}
		case map[string]interface{}:
			return p
		case nil:
			return emptyArgs(tool)
		default:
			return nil
		}
	}

	return extractFromText(s, tool)
}

// extractFromText handles argument strings that are not JSON: quoted
// fragments, key/value snippets with a quoted value, and bare titles.
// Unquoted key/value text is kept whole as the title.
func extractFromText(s string, tool ToolName) map[string]interface{} {
	if isQuoted(s) {
		if title := stripQuotes(s); title != "" {
			return map[string]interface{}{"title": title}
		}
		return emptyArgs(tool)
	}

	if m := titleKeyPattern.FindStringSubmatch(s); m != nil {
		for _, group := range m[1:] {
			if title := strings.TrimSpace(group); title != "" {
				return map[string]interface{}{"title": title}
			}
		}
	}

	if IsNoArgTool(tool) {
		return map[string]interface{}{}
	}
	return map[string]interface{}{"title": s}
}

func emptyArgs(tool ToolName) map[string]interface{} {
	if IsNoArgTool(tool) {
		return map[string]interface{}{}
	}
	return nil
}

func isQuoted(s string) bool {
	if len(s) < 2 {
		return false
	}
	first, last := s[0], s[len(s)-1]
	return first == last && (first == '"' || first == '\'' || first == '`')
}

// stripQuotes trims whitespace and any number of matching outer quotes.
func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	for isQuoted(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// TitleFromArgs returns the first non-blank title-like string argument.
func TitleFromArgs(args map[string]interface{}) (string, bool) {
	for _, k := range titleKeys {
		if s, ok := args[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}
