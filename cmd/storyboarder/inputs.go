package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"storyboarder/internal/api"
	"storyboarder/internal/config"
	"storyboarder/internal/storyboard"
	"storyboarder/internal/transcript"
)

// loadTranscript reads a transcript file, or stdin as JSON when path is "-".
func loadTranscript(path string, stdin io.Reader) ([]transcript.Row, error) {
	if strings.TrimSpace(path) == "-" {
		rows, err := transcript.Decode(stdin, transcript.FormatJSON)
		if err != nil {
			return nil, fmt.Errorf("transcript stdin: %w", err)
		}
		return rows, nil
	}
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	return transcript.Load(expanded)
}

// creativeFlags are the per-request overrides of the [storyboard] defaults.
type creativeFlags struct {
	focalPoints  []string
	style        string
	setting      string
	repairPasses int
}

func (f *creativeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.focalPoints, "focal-point", "f", nil, "Allowed focal point (repeatable or comma separated)")
	cmd.Flags().StringVar(&f.style, "style", "", "Animation style every prompt must reference")
	cmd.Flags().StringVar(&f.setting, "setting", "", "Setting every prompt must reference")
	cmd.Flags().IntVar(&f.repairPasses, "max-repair-passes", -1, "Repair passes after the first attempt (-1 uses the config value)")
}

func (f *creativeFlags) request(source string) api.GenerateRequest {
	req := api.GenerateRequest{
		FocalPoints:    f.focalPoints,
		AnimationStyle: f.style,
		Setting:        f.setting,
		Source:         source,
	}
	if f.repairPasses >= 0 {
		req.MaxRepairPasses = storyboard.RepairPasses(f.repairPasses)
	}
	return req
}

// storyboardRequest applies cfg's defaults to the flags for runs that bypass
// the job service.
func (f *creativeFlags) storyboardRequest(cfg *config.Config, rows []transcript.Row) storyboard.Request {
	req := storyboard.Request{
		Rows: rows,
		Options: storyboard.Options{
			FocalPoints:    nonEmpty(f.focalPoints, cfg.Storyboard.FocalPoints),
			AnimationStyle: firstSet(f.style, cfg.Storyboard.AnimationStyle),
			Setting:        firstSet(f.setting, cfg.Storyboard.Setting),
		},
		MaxRepairPasses: storyboard.RepairPasses(cfg.Storyboard.MaxRepairPasses),
	}
	if f.repairPasses >= 0 {
		req.MaxRepairPasses = storyboard.RepairPasses(f.repairPasses)
	}
	return req
}

func nonEmpty(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func firstSet(value, fallback string) string {
	if v := transcript.CleanText(value); v != "" {
		return v
	}
	return transcript.CleanText(fallback)
}
