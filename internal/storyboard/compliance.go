package storyboard

import (
	"strings"
)

// Defaults inserted by RepairPrompt when a prompt lacks a required element.
const (
	DefaultCameraPhrase = "Wide shot"
	DefaultMotionPhrase = "static camera"
	DefaultTimePhrase   = "morning light"
)

// RepairPrompt forces prompt into compliance with the prompt rules. Missing
// camera and motion keywords are prepended; a missing time of day, setting,
// style, focal subject, and the narration are appended. Forbidden continuity
// phrases are stripped last. An empty prompt yields a complete default
// prompt.
func RepairPrompt(prompt string, entry PlanEntry, focalPoint string, opts Options) string {
	prompt = strings.Join(strings.Fields(prompt), " ")
	prompt = strings.TrimRight(prompt, " .,;")

	var head []string
	if !hasCameraKeyword(prompt) {
		head = append(head, DefaultCameraPhrase)
	}
	if !hasMotionKeyword(prompt) {
		head = append(head, DefaultMotionPhrase)
	}

	parts := make([]string, 0, 8)
	if len(head) > 0 {
		parts = append(parts, strings.Join(head, ", "))
	}
	if prompt != "" {
		parts = append(parts, prompt)
	}
	if !hasTimeKeyword(prompt) {
		parts = append(parts, DefaultTimePhrase)
	}
	if setting := strings.TrimSpace(opts.Setting); setting != "" && !settingReferenced(prompt, setting) {
		parts = append(parts, "Setting: "+setting)
	}
	if style := strings.TrimSpace(opts.AnimationStyle); style != "" && !styleReferenced(prompt, style) {
		parts = append(parts, "Style: "+style)
	}
	if focalPoint != "" && focalPoint != OtherFocalPoint && !mentions(prompt, focalPoint) {
		parts = append(parts, "featuring "+focalPoint)
	}
	if narration := strings.TrimSpace(entry.Verbatim); narration != "" && !mentions(prompt, narration) {
		parts = append(parts, `Narration: "`+narration+`"`)
	}

	return stripForbidden(strings.Join(parts, ", "))
}

// canonicalFocalPoint returns the allowed spelling of candidate, or
// OtherFocalPoint when it names none of the allowed subjects.
func canonicalFocalPoint(candidate string, allowed []string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return OtherFocalPoint
	}
	for _, a := range allowed {
		if strings.EqualFold(strings.TrimSpace(a), candidate) {
			return strings.TrimSpace(a)
		}
	}
	return OtherFocalPoint
}

// Comply builds the final candidate clip by clip. Start, end, and verbatim
// text always come from the plan; the model contributes only the focal point
// (when allowed) and prompt text, which is repaired.
func Comply(plan []PlanEntry, resp untrustedResponse, opts Options) []Clip {
	matched := matchClips(plan, resp.Clips)
	clips := make([]Clip, 0, len(plan))
	for i, entry := range plan {
		candidate := matched[i]
		focal := canonicalFocalPoint(candidate.FocalPoint.Or(""), opts.FocalPoints)
		clips = append(clips, Clip{
			Start:      entry.Start,
			End:        entry.End,
			Verbatim:   entry.Verbatim,
			FocalPoint: focal,
			Prompt:     RepairPrompt(candidate.Prompt.Or(""), entry, focal, opts),
		})
	}
	return clips
}

// matchClips pairs each plan entry with a model clip: the first unused clip
// whose start matches, otherwise the unused clip at the same index. Entries
// without a partner get an empty clip.
func matchClips(plan []PlanEntry, model []untrustedClip) []untrustedClip {
	out := make([]untrustedClip, len(plan))
	used := make([]bool, len(model))
	byStart := make([]int, len(plan))
	for i, entry := range plan {
		byStart[i] = -1
		for j, c := range model {
			if used[j] {
				continue
			}
			if start, ok := c.Start.Get(); ok && start == entry.Start {
				byStart[i] = j
				used[j] = true
				break
			}
		}
	}
	for i := range plan {
		switch {
		case byStart[i] >= 0:
			out[i] = model[byStart[i]]
		case i < len(model) && !used[i]:
			out[i] = model[i]
			used[i] = true
		}
	}
	return out
}
