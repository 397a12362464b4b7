package storyboard

import (
	"time"

	"storyboarder/internal/transcript"
)

// OtherFocalPoint is the focal point used when the model names none of the
// allowed subjects.
const OtherFocalPoint = "Other"

// Clip duration bounds in seconds.
const (
	MinClipSeconds = 2
	MaxClipSeconds = 5
)

// PlanEntry is one clip boundary produced by Partition. End is exclusive.
type PlanEntry struct {
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Verbatim string `json:"verbatim_transcript"`
}

// Duration returns the clip length in seconds.
func (p PlanEntry) Duration() int {
	return p.End - p.Start
}

// Clip is a finished storyboard clip.
type Clip struct {
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Verbatim   string `json:"verbatim_transcript"`
	FocalPoint string `json:"focal_point"`
	Prompt     string `json:"prompt"`
}

// OutputRow is the tabular view of a clip.
type OutputRow struct {
	Timestamp    string `json:"timestamp"`
	VerbatimText string `json:"verbatim_text"`
	FocalPoint   string `json:"focal_point"`
	Prompt       string `json:"prompt"`
}

// Options carries the creative constraints shared by synthesis and
// validation.
type Options struct {
	FocalPoints    []string `json:"focal_points"`
	AnimationStyle string   `json:"animation_style"`
	Setting        string   `json:"setting"`
}

// Request describes one storyboard generation.
type Request struct {
	Rows []transcript.Row
	Options
	// MaxRepairPasses bounds the repair attempts made after the first one.
	// Nil selects DefaultMaxRepairPasses.
	MaxRepairPasses *int
}

// RepairPasses returns a pointer suitable for Request.MaxRepairPasses.
func RepairPasses(n int) *int {
	return &n
}

// Attempt records one synthesize-and-validate round. Attempts are values;
// the generator never modifies one after appending it to the history.
type Attempt struct {
	Number   int           `json:"number"`
	Clips    []Clip        `json:"clips"`
	Raw      string        `json:"raw,omitempty"`
	Errors   []string      `json:"errors,omitempty"`
	Degraded bool          `json:"degraded,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Valid reports whether the attempt passed validation.
func (a Attempt) Valid() bool {
	return len(a.Errors) == 0
}

func (a Attempt) clone() Attempt {
	a.Clips = append([]Clip(nil), a.Clips...)
	a.Errors = append([]string(nil), a.Errors...)
	return a
}

// Result is a validated storyboard.
type Result struct {
	Rows     []OutputRow `json:"rows"`
	Clips    []Clip      `json:"clips"`
	Attempts []Attempt   `json:"attempts"`
}

// Rows converts clips to their tabular form.
func Rows(clips []Clip) []OutputRow {
	rows := make([]OutputRow, 0, len(clips))
	for _, c := range clips {
		rows = append(rows, OutputRow{
			Timestamp:    transcript.FormatTimestamp(c.Start),
			VerbatimText: c.Verbatim,
			FocalPoint:   c.FocalPoint,
			Prompt:       c.Prompt,
		})
	}
	return rows
}
