// Package services defines shared utilities consumed by the storyboard
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent job statuses (failed vs invalid).
//
// Completion clients live in the llm and gemini subpackages; both satisfy
// llm.Completer so the planner never depends on a concrete provider.
package services
