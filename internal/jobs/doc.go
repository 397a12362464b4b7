// Package jobs persists storyboard generation requests in SQLite.
//
// The Store records every request made through the HTTP API or the CLI's
// --save flag: its creative options, the normalized transcript, the attempt
// count, and either the validated storyboard or the failure message. Jobs are
// identified by random UUIDs so they can be handed to clients before
// generation finishes.
//
// The database is treated as a working record rather than an archive. Schema
// changes bump schemaVersion in schema.go; users delete the database to adopt
// the new schema.
package jobs
