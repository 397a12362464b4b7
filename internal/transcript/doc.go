// Package transcript turns timestamped transcription output into the dense,
// one-row-per-second form the storyboard planner consumes.
//
// Callers hand in rows that may be unsorted, duplicated at the same second,
// or missing seconds entirely, with timestamps expressed either as raw
// seconds or as HH:MM:SS strings. Normalize fills the gaps and merges
// duplicates so every second between the first and last timestamp appears
// exactly once. TextBetween derives the verbatim text for a clip range and
// is shared by the partitioner and the validator so both sides agree on the
// exact string.
package transcript
