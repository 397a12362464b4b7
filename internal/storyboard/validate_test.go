package storyboard

import (
	"strings"
	"testing"
)

func validClips(rows []string) []Clip {
	plan := Partition(rowsOf(rows...))
	return Comply(plan, untrustedResponse{Empty: true}, lighthouseOpts)
}

func TestValidateReportsViolations(t *testing.T) {
	texts := []string{"The storm", "arrived.", "Waves", "rose", "high."}
	rows := rowsOf(texts...)

	tests := []struct {
		name   string
		mutate func([]Clip) []Clip
		want   string
	}{
		{
			name:   "no clips",
			mutate: func([]Clip) []Clip { return nil },
			want:   "no clips produced for seconds 0-4",
		},
		{
			name: "gap",
			mutate: func(c []Clip) []Clip {
				c[1].Start = 3
				c[1].Verbatim = "rose high."
				return c
			},
			want: "second 2 covered 0 times",
		},
		{
			name: "overlap",
			mutate: func(c []Clip) []Clip {
				c[0].End = 3
				c[0].Verbatim = "The storm arrived. Waves"
				return c
			},
			want: "clip 1 (2-5): overlaps clip 0 (0-3)",
		},
		{
			name: "too long",
			mutate: func(c []Clip) []Clip {
				return []Clip{{Start: 0, End: 6, Verbatim: "The storm arrived. Waves rose high.", FocalPoint: OtherFocalPoint, Prompt: c[0].Prompt}}
			},
			want: "duration 6s is outside [2, 5]",
		},
		{
			name: "verbatim altered",
			mutate: func(c []Clip) []Clip {
				c[0].Verbatim = "The storm came."
				return c
			},
			want: `verbatim_transcript "The storm came." does not match`,
		},
		{
			name: "unknown focal point",
			mutate: func(c []Clip) []Clip {
				c[1].FocalPoint = "Seagull"
				return c
			},
			want: `focal point "Seagull" is not an allowed focal point`,
		},
		{
			name: "missing camera keyword",
			mutate: func(c []Clip) []Clip {
				c[0].Prompt = strings.Replace(c[0].Prompt, "Wide shot, ", "", 1)
				return c
			},
			want: "clip 0 (0-2): prompt has no camera framing keyword",
		},
		{
			name: "forbidden phrase",
			mutate: func(c []Clip) []Clip {
				c[1].Prompt += ", the same keeper"
				return c
			},
			want: `forbidden continuity phrase "same"`,
		},
		{
			name: "missing style",
			mutate: func(c []Clip) []Clip {
				c[0].Prompt = strings.Replace(c[0].Prompt, "Style: hand-drawn 2D animation, ", "", 1)
				return c
			},
			want: `does not include the animation style "hand-drawn 2D animation"`,
		},
		{
			name: "early clip ends past transcript",
			mutate: func(c []Clip) []Clip {
				return append(c, Clip{Start: 5, End: 7, FocalPoint: OtherFocalPoint, Prompt: c[0].Prompt})
			},
			want: "clip 1 (2-5): only the final clip may end at 5",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clips := tt.mutate(validClips(texts))
			errs := Validate(rows, lighthouseOpts.FocalPoints, lighthouseOpts.Setting, lighthouseOpts.AnimationStyle, clips)
			for _, e := range errs {
				if strings.Contains(e, tt.want) {
					return
				}
			}
			t.Fatalf("expected an error containing %q, got %v", tt.want, errs)
		})
	}
}

func TestValidateAcceptsShortFinalClipAtTranscriptEnd(t *testing.T) {
	rows := rowsOf("Hi.")
	clips := Comply(Partition(rows), untrustedResponse{Empty: true}, Options{})
	if errs := Validate(rows, nil, "", "", clips); len(errs) != 0 {
		t.Fatalf("single second transcript should validate: %v", errs)
	}
}

func TestValidateEmptyTranscript(t *testing.T) {
	if errs := Validate(nil, nil, "", "", nil); len(errs) != 0 {
		t.Fatalf("expected no errors, got %v", errs)
	}
	if errs := Validate(nil, nil, "", "", []Clip{{Start: 0, End: 2}}); len(errs) != 1 {
		t.Fatalf("expected one error, got %v", errs)
	}
}

func TestSettingReferenced(t *testing.T) {
	tests := []struct {
		prompt, setting string
		want            bool
	}{
		{"Rocky shore at dawn", "a lighthouse on a rocky coast", true},
		{"Open field at dawn", "a lighthouse on a rocky coast", false},
		{"Wide shot of the bay", "bay", true},
		{"Wide shot of the sea", "bay", false},
		{"Static shot, Setting: a bay, morning", "a  bay", true},
		{"anything", "  ", true},
	}
	for _, tt := range tests {
		if got := settingReferenced(tt.prompt, tt.setting); got != tt.want {
			t.Errorf("settingReferenced(%q, %q) = %v, want %v", tt.prompt, tt.setting, got, tt.want)
		}
	}
}
