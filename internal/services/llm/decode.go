package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DecodeLLMJSON decodes model output into target. It tries the payload as-is,
// then with code fences stripped and the first top-level JSON object
// extracted.
func DecodeLLMJSON(content string, target any) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return errors.New("empty payload")
	}
	directErr := json.Unmarshal([]byte(trimmed), target)
	if directErr == nil {
		return nil
	}

	sanitized := SanitizeJSON(trimmed)
	if sanitized == "" || sanitized == trimmed {
		return fmt.Errorf("%w (payload snippet: %s)", directErr, snippet(trimmed))
	}
	if err := json.Unmarshal([]byte(sanitized), target); err != nil {
		return fmt.Errorf("%w (sanitized payload snippet: %s)", err, snippet(sanitized))
	}
	return nil
}

// SanitizeJSON strips markdown fences and returns the first top-level JSON
// object in content. When the object never closes (truncated output) the
// remainder from the opening brace is returned.
func SanitizeJSON(content string) string {
	body := stripCodeFence(content)
	if body == "" {
		return ""
	}
	if object, ok := ExtractJSONObject(body); ok {
		return object
	}
	if start := strings.IndexByte(body, '{'); start >= 0 {
		return strings.TrimSpace(body[start:])
	}
	return body
}

// ExtractJSONObject scans for the first balanced {...} span, honouring string
// literals and escapes so braces inside strings do not count.
func ExtractJSONObject(content string) (string, bool) {
	start := strings.IndexByte(content, '{')
	if start < 0 {
		return "", false
	}
	end, ok := balancedEnd(content, start)
	if !ok {
		return "", false
	}
	return content[start : end+1], true
}

// ExtractJSONObjects returns every complete top-level object found inside the
// first array that follows key. Incomplete trailing objects are dropped, which
// lets callers salvage the intact prefix of a truncated response.
func ExtractJSONObjects(content, key string) []string {
	idx := strings.Index(content, `"`+key+`"`)
	if idx < 0 {
		return nil
	}
	open := strings.IndexByte(content[idx:], '[')
	if open < 0 {
		return nil
	}
	var objects []string
	pos := idx + open + 1
	for pos < len(content) {
		switch content[pos] {
		case '{':
			end, ok := balancedEnd(content, pos)
			if !ok {
				return objects
			}
			objects = append(objects, content[pos:end+1])
			pos = end + 1
		case ']':
			return objects
		default:
			pos++
		}
	}
	return objects
}

// balancedEnd returns the index of the brace closing the one at start.
func balancedEnd(content string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, ch == '}'
			}
		}
	}
	return 0, false
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
