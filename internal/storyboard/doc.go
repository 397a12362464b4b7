// Package storyboard plans timed camera clips for a narrated transcript.
//
// The pipeline has four parts:
//
//   - Partition cuts a normalized transcript into 2 to 5 second clips,
//     preferring sentence boundaries. The resulting plan is immutable: start,
//     end, and verbatim text never change after this step.
//   - Synthesizer asks a text completion model for a focal point and camera
//     prompt per clip, then forces the answer through the compliance layer
//     (Comply, RepairPrompt) so malformed or missing output still yields
//     rule-abiding clips.
//   - Validate checks a candidate storyboard against the transcript and the
//     prompt rules and returns every violation it finds.
//   - Generator drives attempt, validate, and repair as an explicit state
//     machine, feeding each repair pass the previous output and its errors.
//     When the repair budget runs out it returns an ExhaustedError carrying
//     the final error list; a storyboard that failed validation is never
//     returned.
//
// Nothing here holds global state. Independent generations may run
// concurrently; a single generation runs its attempts strictly in order.
package storyboard
