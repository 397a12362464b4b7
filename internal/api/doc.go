// Package api defines wire-format types and the storyboard service shared by
// the HTTP server and the CLI. It translates internal job records into
// transport-friendly DTOs so consumers never depend on storage types.
//
// # Key Types
//
// StoryboardService: runs generations against the job store and the event
// registry, synchronously (Generate) or in the background (Start).
//
// Job: transport representation of a stored generation request, with the
// validated storyboard passed through as raw JSON.
//
// GenerateRequest/PlanRequest: request payloads accepted by the HTTP API.
//
// # Design Notes
//
// Job DTOs use camelCase JSON tags. Storyboard rows keep the snake_case field
// names of the output format. Timestamps use RFC3339 with milliseconds.
//
// Terminal progress events are published only after the job record has been
// updated, so a client that sees "completed" on the event stream can fetch
// the finished job immediately.
package api
