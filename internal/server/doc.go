// Package server exposes the storyboard service over HTTP.
//
// It wires configuration, the job store, the event registry, and the
// storyboard generator into a single lifecycle with flock-based locking to
// prevent two servers from sharing a data directory. Routes are served by
// gin inside a plain http.Server so shutdown follows the caller's context.
//
// Endpoints:
//
//	GET    /api/health            readiness, model, and job counts
//	GET    /api/stats             job counts by status
//	POST   /api/plan              clip plan for a transcript (no model call)
//	POST   /api/storyboards       generate; "async": true returns 202 and a job
//	GET    /api/jobs              recent jobs, filterable by ?status=
//	GET    /api/jobs/:id          one job with its storyboard
//	DELETE /api/jobs/:id          remove a finished job
//	GET    /api/jobs/:id/events   server-sent progress events
//
// When server.api_token is set every route requires
// "Authorization: Bearer <token>".
package server
