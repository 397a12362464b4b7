// Command storyboarder turns timestamped transcripts into clip-by-clip
// animation storyboards.
//
//	storyboarder plan transcript.json
//	storyboarder generate transcript.json --focal-point Keeper --setting "a lighthouse"
//	storyboarder batch episodes/*.json --out-dir boards/
//	storyboarder serve
//	storyboarder jobs list --status invalid
package main
