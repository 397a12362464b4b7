package api

import (
	"encoding/json"

	"storyboarder/internal/storyboard"
	"storyboarder/internal/transcript"
)

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Job describes a stored generation request in a transport-friendly format.
type Job struct {
	ID             string          `json:"id"`
	Status         string          `json:"status"`
	Source         string          `json:"source,omitempty"`
	AnimationStyle string          `json:"animationStyle"`
	Setting        string          `json:"setting"`
	FocalPoints    []string        `json:"focalPoints"`
	ErrorMessage   string          `json:"errorMessage,omitempty"`
	Attempts       int             `json:"attempts"`
	CreatedAt      string          `json:"createdAt,omitempty"`
	UpdatedAt      string          `json:"updatedAt,omitempty"`
	Storyboard     json.RawMessage `json:"storyboard,omitempty"`
}

// PlanRequest asks for the clip plan of a transcript without calling a model.
type PlanRequest struct {
	Transcript []transcript.RawRow `json:"transcript"`
}

// PlanResponse is the deterministic clip plan of a transcript.
type PlanResponse struct {
	Seconds int                    `json:"seconds"`
	Clips   []storyboard.PlanEntry `json:"clips"`
}

// GenerateRequest asks for a storyboard. Unset creative options fall back to
// the configured defaults.
type GenerateRequest struct {
	Transcript      []transcript.RawRow `json:"transcript"`
	FocalPoints     []string            `json:"focal_points,omitempty"`
	AnimationStyle  string              `json:"animation_style,omitempty"`
	Setting         string              `json:"setting,omitempty"`
	MaxRepairPasses *int                `json:"max_repair_passes,omitempty"`
	// Async returns the job immediately and generates in the background.
	Async bool `json:"async,omitempty"`
	// Source labels where the request came from (api, cli).
	Source string `json:"-"`
}

// GenerateResponse carries the job and, for synchronous runs, the result.
type GenerateResponse struct {
	Job        Job                `json:"job"`
	Storyboard *storyboard.Result `json:"storyboard,omitempty"`
}

// JobListResponse wraps a collection of jobs for API responses.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job Job `json:"job"`
}

// JobStatsResponse provides normalized job counts.
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// HealthResponse reports server readiness.
type HealthResponse struct {
	Status string         `json:"status"`
	Model  string         `json:"model,omitempty"`
	Jobs   map[string]int `json:"jobs,omitempty"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	JobID   string   `json:"jobId,omitempty"`
}
