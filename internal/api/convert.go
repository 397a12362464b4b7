package api

import (
	"storyboarder/internal/jobs"
)

// FromJob converts a job record to its API representation. The transcript
// is omitted; the storyboard is included when includeResult is set.
func FromJob(job *jobs.Job, includeResult bool) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:             job.ID,
		Status:         string(job.Status),
		Source:         job.Source,
		AnimationStyle: job.AnimationStyle,
		Setting:        job.Setting,
		FocalPoints:    append([]string{}, job.FocalPoints...),
		ErrorMessage:   job.ErrorMessage,
		Attempts:       job.Attempts,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if includeResult && len(job.ResultJSON) > 0 {
		dto.Storyboard = job.ResultJSON
	}
	return dto
}

// FromJobs converts job records into API DTOs without results.
func FromJobs(list []*jobs.Job) []Job {
	out := make([]Job, 0, len(list))
	for _, job := range list {
		out = append(out, FromJob(job, false))
	}
	return out
}

// MergeJobStats returns counts for every known status, including zeros.
func MergeJobStats(stats map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.Statuses()))
	for _, status := range jobs.Statuses() {
		out[string(status)] = stats[status]
	}
	return out
}
