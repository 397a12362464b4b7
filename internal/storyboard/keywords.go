package storyboard

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Keyword sets a prompt must draw from. Matching is case-insensitive on
// word boundaries.
var (
	CameraKeywords = []string{
		"wide", "close-up", "closeup", "close up", "medium", "establishing",
		"overhead", "aerial", "low-angle", "high-angle", "over-the-shoulder",
	}
	MotionKeywords = []string{
		"static", "pan", "panning", "tilt", "tilting", "dolly", "zoom", "zooming",
		"push-in", "pull-back", "tracking", "crane", "handheld", "orbit", "orbiting",
	}
	TimeOfDayKeywords = []string{
		"morning", "afternoon", "evening", "night", "dawn", "dusk", "sunset",
		"sunrise", "midday", "noon", "twilight",
	}
	// ForbiddenPhrases imply continuity between clips, which the
	// downstream animation provider cannot honour.
	ForbiddenPhrases = []string{"same", "returns", "cut back", "as before"}
)

const minSignificantTokenLen = 4

var (
	cameraPattern    = keywordPattern(CameraKeywords)
	motionPattern    = keywordPattern(MotionKeywords)
	timePattern      = keywordPattern(TimeOfDayKeywords)
	forbiddenPattern = keywordPattern(ForbiddenPhrases)

	spaceBeforePunct = regexp.MustCompile(`\s+([,.;:!?])`)
	repeatedCommas   = regexp.MustCompile(`,(\s*,)+`)
)

func keywordPattern(words []string) *regexp.Regexp {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, strings.ReplaceAll(regexp.QuoteMeta(w), " ", `\s+`))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func hasCameraKeyword(prompt string) bool { return cameraPattern.MatchString(prompt) }

func hasMotionKeyword(prompt string) bool { return motionPattern.MatchString(prompt) }

func hasTimeKeyword(prompt string) bool { return timePattern.MatchString(prompt) }

// forbiddenPhrasesIn returns the forbidden phrases found in prompt, lower-cased.
func forbiddenPhrasesIn(prompt string) []string {
	matches := forbiddenPattern.FindAllString(prompt, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.Join(strings.Fields(strings.ToLower(m)), " ")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

// stripForbidden removes every forbidden phrase and tidies the whitespace
// and punctuation left behind.
func stripForbidden(prompt string) string {
	out := forbiddenPattern.ReplaceAllString(prompt, "")
	out = strings.Join(strings.Fields(out), " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = repeatedCommas.ReplaceAllString(out, ",")
	return strings.Trim(out, " ,;:")
}

// settingReferenced reports whether prompt mentions the setting. A setting
// with significant tokens (four or more letters) counts as referenced when
// any of them appears; shorter settings must appear whole.
func settingReferenced(prompt, setting string) bool {
	setting = strings.TrimSpace(setting)
	if setting == "" {
		return true
	}
	lower := strings.ToLower(prompt)
	tokens := significantTokens(setting)
	if len(tokens) == 0 {
		return strings.Contains(canonicalPhrase(prompt), canonicalPhrase(setting))
	}
	for _, token := range tokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// styleReferenced reports whether prompt contains the animation style.
// Whitespace and punctuation spacing are compared the way stripForbidden
// leaves them.
func styleReferenced(prompt, style string) bool {
	style = canonicalPhrase(style)
	if style == "" {
		return true
	}
	return strings.Contains(canonicalPhrase(prompt), style)
}

// canonicalPhrase lower-cases text and tidies it like stripForbidden.
func canonicalPhrase(text string) string {
	out := strings.Join(strings.Fields(text), " ")
	out = spaceBeforePunct.ReplaceAllString(out, "$1")
	out = repeatedCommas.ReplaceAllString(out, ",")
	return strings.ToLower(strings.Trim(out, " ,;:"))
}

func significantTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= minSignificantTokenLen {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func mentions(prompt, subject string) bool {
	subject = strings.TrimSpace(subject)
	return subject != "" && strings.Contains(strings.ToLower(prompt), strings.ToLower(subject))
}
