package toolcall

import "strings"

// Path is a sequence of object keys walked from the event root.
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

// Lookup walks the path. A nil value counts as absent.
func (p Path) Lookup(root map[string]interface{}) (interface{}, bool) {
	var cur interface{} = root
	for _, key := range p {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		cur, ok = obj[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func (p Path) child(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

// toolCallBases lists where a tool-call event may keep its function
// payload, shallowest first. The properties-nested variants come from
// newer provider payloads and rank last.
var toolCallBases = []Path{
	{"data"},
	{"data", "function"},
	{},
	{"function"},
	{"data", "properties"},
	{"data", "properties", "function"},
	{"properties"},
	{"properties", "function"},
}

var argKeys = []string{"args", "arguments"}

// NamePaths returns the ordered candidate paths for a tool name.
func NamePaths() []Path {
	out := make([]Path, 0, len(toolCallBases))
	for _, base := range toolCallBases {
		out = append(out, base.child("name"))
	}
	return out
}

// ArgPaths returns the ordered candidate paths for raw arguments.
func ArgPaths() []Path {
	out := make([]Path, 0, len(toolCallBases)*len(argKeys))
	for _, base := range toolCallBases {
		for _, k := range argKeys {
			out = append(out, base.child(k))
		}
	}
	return out
}

var speechPaths = []Path{
	{"data", "speech"},
	{"data", "properties", "speech"},
	{"speech"},
	{"properties", "speech"},
}

var transcriptPaths = []Path{
	{"data", "transcript"},
	{"data", "properties", "transcript"},
	{"transcript"},
}

// firstString returns the first non-blank string found along paths and
// the index of the path that matched, or -1.
func firstString(root map[string]interface{}, paths []Path) (string, int) {
	for i, p := range paths {
		v, ok := p.Lookup(root)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s, i
		}
	}
	return "", -1
}

// toolCallArgs reads arguments only from the base whose name matched, so a
// name is never paired with arguments from another nesting level.
func toolCallArgs(root map[string]interface{}, baseIndex int) interface{} {
	if baseIndex < 0 || baseIndex >= len(toolCallBases) {
		return nil
	}
	base := toolCallBases[baseIndex]
	for _, k := range argKeys {
		if v, ok := base.child(k).Lookup(root); ok {
			return v
		}
	}
	return nil
}
