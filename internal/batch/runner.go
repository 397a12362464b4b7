package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"storyboarder/internal/api"
	"storyboarder/internal/logging"
	"storyboarder/internal/transcript"
)

// Generator produces one storyboard. *api.StoryboardService satisfies it.
type Generator interface {
	Generate(ctx context.Context, req api.GenerateRequest) (*api.GenerateResponse, error)
}

// Item is one transcript to storyboard.
type Item struct {
	Name    string
	Request api.GenerateRequest
}

// Outcome is the result of one Item, at the same index as its input.
type Outcome struct {
	Name     string
	Response *api.GenerateResponse
	Err      error
	Duration time.Duration
}

// OK reports whether the item produced a validated storyboard.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Response != nil && o.Response.Storyboard != nil
}

// Runner runs items with bounded parallelism.
type Runner struct {
	gen         Generator
	concurrency int
	logger      *slog.Logger
}

// NewRunner builds a runner. concurrency below 1 runs items one at a time.
func NewRunner(gen Generator, concurrency int, logger *slog.Logger) *Runner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Runner{gen: gen, concurrency: concurrency, logger: logging.NewComponentLogger(logger, "batch")}
}

// Run generates every item and returns one outcome per item in input order.
// Cancelling ctx stops items that have not started; they report ctx's error.
func (r *Runner) Run(ctx context.Context, items []Item) []Outcome {
	outcomes := make([]Outcome, len(items))
	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for i, item := range items {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, i, item)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	r.logger.Info("batch finished",
		logging.String(logging.FieldEventType, "batch_finished"),
		logging.Int("items", len(items)),
		logging.Int("failed", failed),
	)
	return outcomes
}

func (r *Runner) runOne(ctx context.Context, index int, item Item) Outcome {
	out := Outcome{Name: item.Name}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}
	logger := r.logger.With(logging.Int("item_index", index), logging.String("item", item.Name))
	logger.Debug("batch item started")

	start := time.Now()
	resp, err := r.gen.Generate(ctx, item.Request)
	out.Duration = time.Since(start)
	out.Response = resp
	if err != nil {
		out.Err = fmt.Errorf("%s: %w", item.Name, err)
		logging.WarnWithContext(logger, "batch item failed", "batch_item_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item has no storyboard; the rest of the batch continues"),
		)
		return out
	}
	logger.Info("batch item completed",
		logging.Duration("duration", out.Duration.Round(time.Millisecond)),
		logging.String(logging.FieldJobID, resp.Job.ID),
	)
	return out
}

// LoadItems reads each transcript file into an item built on base. Items
// are named after their file; repeated names get a numeric suffix.
func LoadItems(paths []string, base api.GenerateRequest) ([]Item, error) {
	items := make([]Item, 0, len(paths))
	seen := make(map[string]int, len(paths))
	for _, path := range paths {
		rows, err := transcript.Load(path)
		if err != nil {
			return nil, err
		}
		req := base
		req.Transcript = transcript.Raw(rows)
		req.FocalPoints = append([]string(nil), base.FocalPoints...)

		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s-%d", name, n)
		}
		items = append(items, Item{Name: name, Request: req})
	}
	return items, nil
}
