package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"storyboarder/internal/batch"
	"storyboarder/internal/config"
	"storyboarder/internal/server"
	"storyboarder/internal/services/llm"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var flags creativeFlags
	var concurrency int
	var requestsPerMinute int
	var outDir string

	cmd := &cobra.Command{
		Use:   "batch <transcript>...",
		Short: "Generate storyboards for several transcripts concurrently",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.Batch.Concurrency
			}
			if requestsPerMinute <= 0 {
				requestsPerMinute = cfg.Batch.RequestsPerMinute
			}

			paths := make([]string, 0, len(args))
			for _, arg := range args {
				expanded, err := config.ExpandPath(arg)
				if err != nil {
					return err
				}
				paths = append(paths, expanded)
			}
			items, err := batch.LoadItems(paths, flags.request("batch"))
			if err != nil {
				return err
			}
			if outDir != "" {
				if outDir, err = config.ExpandPath(outDir); err != nil {
					return err
				}
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("create output directory: %w", err)
				}
			}

			limiter := batch.NewLimiter(requestsPerMinute)
			pace := server.WithCompleterWrapper(func(next llm.Completer) llm.Completer {
				return batch.NewRateLimitedCompleter(next, limiter)
			})

			var outcomes []batch.Outcome
			err = ctx.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
				runner := batch.NewRunner(rt.Service, concurrency, ctx.commandLogger())
				outcomes = runner.Run(cmd.Context(), items)
				return nil
			}, pace)
			if err != nil {
				return err
			}

			failed := 0
			rows := make([][]string, 0, len(outcomes))
			for _, o := range outcomes {
				status, jobID, clips := "failed", "", ""
				if o.Response != nil {
					status = o.Response.Job.Status
					jobID = o.Response.Job.ID
				}
				if o.OK() {
					clips = strconv.Itoa(len(o.Response.Storyboard.Rows))
					if outDir != "" {
						if err := writeStoryboardFile(filepath.Join(outDir, o.Name+".storyboard.json"), o); err != nil {
							return err
						}
					}
				} else {
					failed++
				}
				rows = append(rows, []string{o.Name, status, jobID, clips, o.Duration.Round(time.Millisecond).String()})
			}
			fmt.Fprint(cmd.OutOrStdout(), renderTable(
				[]column{left("Transcript"), left("Status"), left("Job"), right("Clips"), right("Duration")},
				rows,
			))
			for _, o := range outcomes {
				if o.Err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%v\n", o.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d storyboards failed", failed, len(outcomes))
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Transcripts generated at once (0 uses the config value)")
	cmd.Flags().IntVar(&requestsPerMinute, "rpm", 0, "Completion requests per minute across the batch (0 uses the config value)")
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "Write each storyboard as <name>.storyboard.json into this directory")
	return cmd
}

func writeStoryboardFile(path string, o batch.Outcome) error {
	data, err := json.MarshalIndent(o.Response.Storyboard.Rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", o.Name, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
