package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"storyboarder/internal/events"
	"storyboarder/internal/server"
	"storyboarder/internal/services/providers"
	"storyboarder/internal/storyboard"
	"storyboarder/internal/transcript"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var flags creativeFlags
	var jsonOutput bool
	var save bool

	cmd := &cobra.Command{
		Use:   "generate <transcript>",
		Short: "Generate a validated storyboard for a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := loadTranscript(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stderr := cmd.ErrOrStderr()

			var result *storyboard.Result
			if save {
				err = ctx.withRuntime(cmd.Context(), func(rt *server.Runtime) error {
					req := flags.request("cli")
					req.Transcript = transcript.Raw(rows)
					resp, genErr := rt.Service.Generate(cmd.Context(), req)
					if resp != nil {
						fmt.Fprintf(stderr, "Job %s: %s\n", resp.Job.ID, resp.Job.Status)
						result = resp.Storyboard
					}
					return genErr
				})
			} else {
				var provider *providers.Provider
				provider, err = providers.Open(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				generator := storyboard.NewGenerator(provider.Completer,
					storyboard.WithAttemptTimeout(cfg.AttemptTimeout()),
					storyboard.WithLogger(ctx.commandLogger()),
				)
				progress := &progressPrinter{out: stderr, colorize: shouldColorize(stderr)}
				result, err = generator.Generate(cmd.Context(), flags.storyboardRequest(cfg, rows), progress)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, result.Rows)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderStoryboard(result))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output storyboard rows as JSON")
	cmd.Flags().BoolVar(&save, "save", false, "Record the run in the job database")
	return cmd
}

func renderStoryboard(result *storyboard.Result) string {
	if result == nil || len(result.Rows) == 0 {
		return "Storyboard is empty\n"
	}
	rows := make([][]string, 0, len(result.Rows))
	for _, r := range result.Rows {
		rows = append(rows, []string{r.Timestamp, r.FocalPoint, r.VerbatimText, r.Prompt})
	}
	return renderTable(
		[]column{left("Timestamp"), left("Focal point"), wrapped("Verbatim", 40), wrapped("Prompt", 70)},
		rows,
	)
}

// progressPrinter reports generation attempts on stderr.
type progressPrinter struct {
	out      io.Writer
	colorize bool
}

func (p *progressPrinter) Publish(evt events.Event) {
	kind := statusInfo
	switch evt.Type {
	case events.TypeAttemptInvalid:
		kind = statusWarn
	case events.TypeCompleted:
		kind = statusOK
	case events.TypeFailed:
		kind = statusError
	}
	fmt.Fprintln(p.out, renderStatusLine(fmt.Sprintf("attempt %d", evt.Attempt), kind, evt.Message, p.colorize))
}
