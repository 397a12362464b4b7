package storyboard

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildMessages returns the system and user messages for one synthesis
// attempt. On repair passes prior carries the previous candidate and its
// validation errors.
func BuildMessages(plan []PlanEntry, opts Options, prior *Attempt) (string, string) {
	return systemMessage(opts), userMessage(plan, opts, prior)
}

func systemMessage(opts Options) string {
	var b strings.Builder
	b.WriteString("You are a storyboard artist planning short animated clips for a narrated video.\n")
	b.WriteString("Respond with a single JSON object and nothing else.\n\n")
	b.WriteString("Schema:\n")
	b.WriteString(`{"clips": [{"start": <int>, "end": <int>, "verbatim_transcript": "<string>", "focal_point": "<string>", "luma_prompt": "<string>"}]}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Return exactly one clip per planned clip, in order, copying start, end, and verbatim_transcript unchanged.\n")
	fmt.Fprintf(&b, "- focal_point must be one of: %s.\n", focalPointList(opts.FocalPoints))
	fmt.Fprintf(&b, "- Every luma_prompt names a camera framing (%s).\n", strings.Join(CameraKeywords, ", "))
	fmt.Fprintf(&b, "- Every luma_prompt names a camera motion (%s).\n", strings.Join(MotionKeywords, ", "))
	fmt.Fprintf(&b, "- Every luma_prompt names a time of day (%s).\n", strings.Join(TimeOfDayKeywords, ", "))
	if setting := strings.TrimSpace(opts.Setting); setting != "" {
		fmt.Fprintf(&b, "- Every luma_prompt places the scene in the setting: %s.\n", setting)
	}
	if style := strings.TrimSpace(opts.AnimationStyle); style != "" {
		fmt.Fprintf(&b, "- Every luma_prompt includes the exact animation style text: %s.\n", style)
	}
	fmt.Fprintf(&b, "- Each clip is rendered independently. Never use continuity phrases: %s.\n", quotedList(ForbiddenPhrases))
	b.WriteString("- Describe what the viewer sees; do not paraphrase the narration.\n")
	return b.String()
}

type planMessage struct {
	FocalPoints    []string    `json:"focal_points"`
	AnimationStyle string      `json:"animation_style,omitempty"`
	Setting        string      `json:"setting,omitempty"`
	Clips          []PlanEntry `json:"clips"`
}

type repairMessage struct {
	Clips []repairClip `json:"clips"`
}

type repairClip struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Verbatim   string `json:"verbatim_transcript"`
	FocalPoint string `json:"focal_point"`
	Prompt     string `json:"luma_prompt"`
}

func userMessage(plan []PlanEntry, opts Options, prior *Attempt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write %d clips for this plan:\n", len(plan))
	b.Write(mustJSON(planMessage{
		FocalPoints:    allowedFocalPoints(opts.FocalPoints),
		AnimationStyle: strings.TrimSpace(opts.AnimationStyle),
		Setting:        strings.TrimSpace(opts.Setting),
		Clips:          plan,
	}))
	b.WriteString("\n")

	if prior == nil {
		return b.String()
	}

	previous := repairMessage{Clips: make([]repairClip, 0, len(prior.Clips))}
	for _, c := range prior.Clips {
		previous.Clips = append(previous.Clips, repairClip(c))
	}
	fmt.Fprintf(&b, "\nYour previous answer (attempt %d) failed validation:\n", prior.Number)
	b.Write(mustJSON(previous))
	b.WriteString("\n\nFix every one of these errors and return the corrected JSON:\n")
	for _, e := range prior.Errors {
		b.WriteString("- ")
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String()
}

func allowedFocalPoints(points []string) []string {
	out := make([]string, 0, len(points)+1)
	for _, p := range points {
		if p = strings.TrimSpace(p); p != "" && !strings.EqualFold(p, OtherFocalPoint) {
			out = append(out, p)
		}
	}
	return append(out, OtherFocalPoint)
}

func focalPointList(points []string) string {
	return quotedList(allowedFocalPoints(points))
}

func quotedList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, fmt.Sprintf("%q", v))
	}
	return strings.Join(quoted, ", ")
}

func mustJSON(v any) []byte {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		// Only plain structs of strings and ints are encoded here.
		panic(fmt.Sprintf("storyboard: encode message: %v", err))
	}
	return data
}
