package toolcall

import (
	"regexp"
	"strings"
)

// MaxUtteranceLength bounds the text the natural-language rules will scan.
const MaxUtteranceLength = 4096

// aliasTable maps short commands to canonical tools. Keys are normalized:
// lowercase, single spaces, no underscores or dashes.
var aliasTable = map[string]ToolName{
	"pause":           PauseVideo,
	"pause video":     PauseVideo,
	"pause the video": PauseVideo,
	"pause it":        PauseVideo,
	"hold":            PauseVideo,
	"hold on":         PauseVideo,
	"hold the video":  PauseVideo,
	"wait":            PauseVideo,

	"play":               PlayVideo,
	"play video":         PlayVideo,
	"play the video":     PlayVideo,
	"play it":            PlayVideo,
	"resume":             PlayVideo,
	"resume video":       PlayVideo,
	"resume the video":   PlayVideo,
	"resume it":          PlayVideo,
	"continue":           PlayVideo,
	"continue video":     PlayVideo,
	"continue the video": PlayVideo,
	"unpause":            PlayVideo,
	"unpause video":      PlayVideo,
	"unpause the video":  PlayVideo,
	"start":              PlayVideo,
	"start video":        PlayVideo,
	"start the video":    PlayVideo,

	"next":            NextVideo,
	"next video":      NextVideo,
	"next one":        NextVideo,
	"skip":            NextVideo,
	"skip video":      NextVideo,
	"skip the video":  NextVideo,
	"skip this video": NextVideo,
	"skip it":         NextVideo,

	"close":           CloseVideo,
	"close video":     CloseVideo,
	"close the video": CloseVideo,
	"close it":        CloseVideo,
	"exit":            CloseVideo,
	"exit video":      CloseVideo,
	"exit the video":  CloseVideo,
	"stop":            CloseVideo,
	"stop video":      CloseVideo,
	"stop the video":  CloseVideo,
	"end":             CloseVideo,
	"end video":       CloseVideo,
	"end the video":   CloseVideo,
	"hide":            CloseVideo,
	"hide video":      CloseVideo,
	"hide the video":  CloseVideo,

	"show trial":     ShowTrialCTA,
	"show trial cta": ShowTrialCTA,
	"show cta":       ShowTrialCTA,
	"trial cta":      ShowTrialCTA,
	"start trial":    ShowTrialCTA,
	"free trial":     ShowTrialCTA,
}

var (
	whitespacePattern    = regexp.MustCompile(`\s+`)
	trailingPunctPattern = regexp.MustCompile(`[\s.!?,;:…]+$`)
	aliasKeyReplacer     = strings.NewReplacer("_", " ", "-", " ")
	apostropheReplacer   = strings.NewReplacer("’", "'", "‘", "'", "`", "'")
)

func normalizeAliasKey(name string) string {
	s := strings.ToLower(aliasKeyReplacer.Replace(name))
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// normalizeUtterance lowercases text, unifies apostrophes, strips trailing
// punctuation and collapses whitespace.
func normalizeUtterance(text string) string {
	s := strings.ToLower(apostropheReplacer.Replace(text))
	s = whitespacePattern.ReplaceAllString(s, " ")
	s = trailingPunctPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// Canonicalize maps a short command or alias to a no-arg tool using an
// exact, case-insensitive lookup.
func Canonicalize(name string) (ToolName, bool) {
	key := normalizeAliasKey(name)
	if key == "" {
		return "", false
	}
	tool, ok := aliasTable[key]
	return tool, ok
}

// utteranceRule is one keyword predicate of the natural-language matcher.
type utteranceRule struct {
	name  string
	tool  ToolName
	match func(text string) bool
}

var (
	negationPattern = regexp.MustCompile(
		`\b(?:don'?t|do not|doesn'?t|does not|never|not|no need to)\s+(?:\w+\s+){0,2}?(?:pause|hold|resume|play|continue|unpause|start|next|skip|close|exit|stop|end|hide)\b`,
	)
	pausePattern      = regexp.MustCompile(`\b(?:pause|hold(?:\s+on)?)\b`)
	playPattern       = regexp.MustCompile(`\b(?:resume|play|continue|unpause|start)\b(?:\s+(?:the\s+)?video)?`)
	nextPattern       = regexp.MustCompile(`\b(?:next|skip)\b(?:\s+(?:the\s+)?video)?`)
	closeKeyword      = regexp.MustCompile(`\b(?:close|exit)\b(?:\s+(?:the\s+)?video)?`)
	closeVideoPattern = regexp.MustCompile(`\b(?:stop|end|hide)\s+(?:the\s+)?video\b`)
)

// IsNegated reports whether a command verb is preceded by a negation.
func IsNegated(text string) bool {
	return negationPattern.MatchString(text)
}

// MatchesPause matches bare "pause", "hold" or "hold on".
func MatchesPause(text string) bool { return pausePattern.MatchString(text) }

// MatchesPlay matches resume, play, continue, unpause and start.
func MatchesPlay(text string) bool { return playPattern.MatchString(text) }

// MatchesNext matches next and skip.
func MatchesNext(text string) bool { return nextPattern.MatchString(text) }

// MatchesClose matches explicit close/exit, or stop/end/hide only when
// followed by "video". A bare "stop" in conversation must not close the
// player.
func MatchesClose(text string) bool {
	return closeKeyword.MatchString(text) || closeVideoPattern.MatchString(text)
}

// utteranceRules are evaluated in order; the first match wins.
var utteranceRules = []utteranceRule{
	{name: "pause", tool: PauseVideo, match: MatchesPause},
	{name: "play", tool: PlayVideo, match: MatchesPlay},
	{name: "next", tool: NextVideo, match: MatchesNext},
	{name: "close", tool: CloseVideo, match: MatchesClose},
}

// MapUtterance matches free text against the alias table and then the
// keyword rules. Negated commands never match.
func MapUtterance(text string) (ToolName, bool) {
	if len(text) > MaxUtteranceLength {
		return "", false
	}
	s := normalizeUtterance(text)
	if s == "" {
		return "", false
	}

	if tool, ok := Canonicalize(s); ok {
		return tool, true
	}

	if IsNegated(s) {
		return "", false
	}

	for _, rule := range utteranceRules {
		if rule.match(s) {
			return rule.tool, true
		}
	}
	return "", false
}

var fillerPhrases = []string{"could you", "can you", "would you", "will you", "could we", "can we", "go ahead and", "i want to", "let's", "lets"}

var fillerWords = map[string]bool{
	"please": true, "the": true, "this": true, "that": true, "now": true,
	"just": true, "kindly": true, "ok": true, "okay": true, "then": true,
	"for": true, "me": true, "us": true,
}

// stripFiller removes politeness filler from a normalized command.
func stripFiller(s string) string {
	s = " " + s + " "
	for _, phrase := range fillerPhrases {
		s = strings.ReplaceAll(s, " "+phrase+" ", " ")
	}
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !fillerWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// RemapCommandTitle detects a fetch_video title that is really a playback
// command, such as fetch_video("pause"), and returns the tool it stands for.
// After the exact alias lookup it applies the same keyword rules as free
// speech, so any title containing a command verb is remapped.
func RemapCommandTitle(title string) (ToolName, bool) {
	if len(title) > MaxUtteranceLength {
		return "", false
	}
	s := stripFiller(normalizeUtterance(stripQuotes(title)))
	if s == "" {
		return "", false
	}

	if tool, ok := Canonicalize(s); ok {
		return tool, true
	}
	return MapUtterance(s)
}
