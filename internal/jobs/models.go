package jobs

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	// StatusInvalid marks a job whose request or storyboard could not be
	// made valid. Retrying it unchanged will fail the same way.
	StatusInvalid Status = "invalid"
)

// InterruptedReason is the error message set on jobs that were generating
// when the server stopped.
const InterruptedReason = "Interrupted by server shutdown"

var allStatuses = []Status{
	StatusPending,
	StatusGenerating,
	StatusCompleted,
	StatusFailed,
	StatusInvalid,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// ParseStatus converts a string into a Status.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := statusSet[status]
	return status, ok
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusInvalid:
		return true
	}
	return false
}

// Job is one storyboard generation request.
type Job struct {
	ID             string          `json:"id"`
	Status         Status          `json:"status"`
	Source         string          `json:"source,omitempty"`
	AnimationStyle string          `json:"animation_style"`
	Setting        string          `json:"setting"`
	FocalPoints    []string        `json:"focal_points"`
	TranscriptJSON json.RawMessage `json:"transcript,omitempty"`
	ResultJSON     json.RawMessage `json:"result,omitempty"`
	ErrorMessage   string          `json:"error,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// NewJob describes a job to create.
type NewJob struct {
	Source         string
	AnimationStyle string
	Setting        string
	FocalPoints    []string
	// Transcript is marshalled to JSON and stored with the job.
	Transcript any
}

// ListOptions filters List results.
type ListOptions struct {
	Statuses []Status
	// Limit caps the number of jobs returned; zero means no limit.
	Limit int
}
