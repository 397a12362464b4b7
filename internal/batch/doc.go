// Package batch generates storyboards for many transcripts at once.
//
// Items run concurrently up to a fixed limit and share one request pacer
// on the completion provider. Each item is independent: a failure is
// recorded on its Outcome and never stops the rest of the batch.
package batch
