package storyboard

import (
	"fmt"
	"strings"

	"storyboarder/internal/transcript"
)

// Validate checks clips against the transcript and the prompt rules and
// returns every violation found. An empty result means the storyboard is
// valid. rows must be normalized.
func Validate(rows []transcript.Row, focalPoints []string, setting, style string, clips []Clip) []string {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	first, last, ok := transcript.Bounds(rows)
	if !ok {
		if len(clips) > 0 {
			addf("transcript is empty but %d clips were produced", len(clips))
		}
		return errs
	}
	if len(clips) == 0 {
		addf("no clips produced for seconds %d-%d", first, last)
	}

	allowed := make(map[string]struct{}, len(focalPoints)+1)
	for _, p := range focalPoints {
		if p = strings.TrimSpace(p); p != "" {
			allowed[p] = struct{}{}
		}
	}
	allowed[OtherFocalPoint] = struct{}{}

	known := func(second int) bool { return second >= first && second <= last }

	for i, c := range clips {
		final := i == len(clips)-1
		label := fmt.Sprintf("clip %d (%d-%d)", i, c.Start, c.End)

		minDuration := MinClipSeconds
		if final && c.End == last+1 {
			minDuration = 1
		}
		if d := c.End - c.Start; d < minDuration || d > MaxClipSeconds {
			addf("%s: duration %ds is outside [%d, %d]", label, d, MinClipSeconds, MaxClipSeconds)
		}

		if !known(c.Start) {
			addf("%s: start %d is not a transcript second", label, c.Start)
		}
		switch {
		case c.End == last+1 && !final:
			addf("%s: only the final clip may end at %d", label, c.End)
		case c.End != last+1 && !known(c.End):
			addf("%s: end %d is not a transcript second", label, c.End)
		}

		if i > 0 {
			prev := clips[i-1]
			if c.Start < prev.End {
				addf("%s: overlaps clip %d (%d-%d)", label, i-1, prev.Start, prev.End)
			}
		}

		if c.End > c.Start {
			if want := transcript.TextBetween(rows, c.Start, c.End); transcript.CleanText(c.Verbatim) != want {
				addf("%s: verbatim_transcript %q does not match transcript text %q", label, c.Verbatim, want)
			}
		}

		if _, ok := allowed[c.FocalPoint]; !ok {
			addf("%s: focal point %q is not an allowed focal point", label, c.FocalPoint)
		}

		errs = append(errs, promptErrors(label, c.Prompt, setting, style)...)
	}

	counts := make([]int, last-first+1)
	for _, c := range clips {
		for s := max(c.Start, first); s < min(c.End, last+1); s++ {
			counts[s-first]++
		}
	}
	for i, n := range counts {
		if n != 1 {
			addf("second %d covered %d times", first+i, n)
		}
	}
	return errs
}

func promptErrors(label, prompt, setting, style string) []string {
	var errs []string
	if strings.TrimSpace(prompt) == "" {
		return []string{label + ": prompt is empty"}
	}
	if !hasCameraKeyword(prompt) {
		errs = append(errs, label+": prompt has no camera framing keyword")
	}
	if !hasMotionKeyword(prompt) {
		errs = append(errs, label+": prompt has no camera motion keyword")
	}
	if !hasTimeKeyword(prompt) {
		errs = append(errs, label+": prompt has no time-of-day keyword")
	}
	if !settingReferenced(prompt, setting) {
		errs = append(errs, fmt.Sprintf("%s: prompt does not reference the setting %q", label, strings.TrimSpace(setting)))
	}
	if !styleReferenced(prompt, style) {
		errs = append(errs, fmt.Sprintf("%s: prompt does not include the animation style %q", label, strings.TrimSpace(style)))
	}
	if found := forbiddenPhrasesIn(prompt); len(found) > 0 {
		errs = append(errs, fmt.Sprintf("%s: prompt contains forbidden continuity phrase %s", label, quotedList(found)))
	}
	return errs
}
