package storyboard

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"storyboarder/internal/services/llm"
	"storyboarder/internal/transcript"
)

// optional holds a value that the model may or may not have supplied.
type optional[T any] struct {
	value T
	ok    bool
}

func some[T any](v T) optional[T] {
	return optional[T]{value: v, ok: true}
}

// Get returns the value and whether it was present.
func (o optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// Or returns the value, or fallback when absent.
func (o optional[T]) Or(fallback T) T {
	if o.ok {
		return o.value
	}
	return fallback
}

// untrustedClip is a model clip exactly as far as it could be read. Every
// field may be missing or wrong; only Comply turns it into a Clip.
type untrustedClip struct {
	Start      optional[int]
	End        optional[int]
	Verbatim   optional[string]
	FocalPoint optional[string]
	Prompt     optional[string]
}

// untrustedResponse is the decoded model answer.
type untrustedResponse struct {
	Clips []untrustedClip
	// Empty means nothing usable came back: no text, or no JSON at all.
	Empty bool
	// Salvaged means the JSON was truncated and only complete clip objects
	// were recovered.
	Salvaged bool
}

// decodeUntrusted reads raw model output without ever failing. It accepts a
// {"clips": [...]} object (possibly wrapped in prose or code fences), a bare
// clip array, or a truncated object whose complete clips can be recovered.
func decodeUntrusted(raw string) untrustedResponse {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return untrustedResponse{Empty: true}
	}

	var items []json.RawMessage
	if strings.HasPrefix(trimmed, "[") && json.Unmarshal([]byte(trimmed), &items) == nil {
		return untrustedResponse{Clips: decodeClips(items)}
	}

	var envelope struct {
		Clips []json.RawMessage `json:"clips"`
	}
	if err := llm.DecodeLLMJSON(trimmed, &envelope); err == nil {
		return untrustedResponse{Clips: decodeClips(envelope.Clips), Empty: envelope.Clips == nil}
	}

	objects := llm.ExtractJSONObjects(trimmed, "clips")
	if len(objects) == 0 {
		return untrustedResponse{Empty: true}
	}
	items = make([]json.RawMessage, 0, len(objects))
	for _, obj := range objects {
		items = append(items, json.RawMessage(obj))
	}
	return untrustedResponse{Clips: decodeClips(items), Salvaged: true}
}

func decodeClips(items []json.RawMessage) []untrustedClip {
	clips := make([]untrustedClip, 0, len(items))
	for _, item := range items {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			clips = append(clips, untrustedClip{})
			continue
		}
		clips = append(clips, untrustedClip{
			Start:      optSecond(lookup(fields, "start", "start_time")),
			End:        optSecond(lookup(fields, "end", "end_time")),
			Verbatim:   optString(lookup(fields, "verbatim_transcript", "verbatimTranscript", "verbatim")),
			FocalPoint: optString(lookup(fields, "focal_point", "focalPoint")),
			Prompt:     optString(lookup(fields, "luma_prompt", "lumaPrompt", "prompt")),
		})
	}
	return clips
}

func lookup(fields map[string]json.RawMessage, keys ...string) json.RawMessage {
	for _, key := range keys {
		if raw, ok := fields[key]; ok {
			return raw
		}
	}
	return nil
}

func optString(raw json.RawMessage) optional[string] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return optional[string]{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s = strings.TrimSpace(s); s != "" {
			return some(s)
		}
		return optional[string]{}
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return some(n.String())
	}
	return optional[string]{}
}

// optSecond accepts a number (fractions floored) or a timestamp string.
func optSecond(raw json.RawMessage) optional[int] {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return optional[int]{}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || f < 0 || f >= transcript.MaxSeconds+1 {
			return optional[int]{}
		}
		return some(int(math.Floor(f)))
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return optional[int]{}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && n >= 0 && n <= transcript.MaxSeconds {
		return some(n)
	}
	if seconds, err := transcript.ParseTimestamp(s); err == nil {
		return some(seconds)
	}
	return optional[int]{}
}
