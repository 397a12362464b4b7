// Package events carries per-job progress notifications from the storyboard
// generator to whoever is watching that job.
//
// Every job gets its own Stream. A stream keeps a bounded replay buffer so a
// subscriber that connects late still sees the attempts already made, and it
// is closed once the job reaches a terminal state. The Registry that maps job
// IDs to streams is owned by the server; nothing in this package is global.
package events
