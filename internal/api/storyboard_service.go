package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"storyboarder/internal/config"
	"storyboarder/internal/events"
	"storyboarder/internal/jobs"
	"storyboarder/internal/logging"
	"storyboarder/internal/services"
	"storyboarder/internal/storyboard"
	"storyboarder/internal/transcript"
)

// JobStore abstracts job persistence interactions needed by the service.
type JobStore interface {
	Create(ctx context.Context, req jobs.NewJob) (*jobs.Job, error)
	Get(ctx context.Context, id string) (*jobs.Job, error)
	List(ctx context.Context, opts jobs.ListOptions) ([]*jobs.Job, error)
	Stats(ctx context.Context) (map[jobs.Status]int, error)
	MarkGenerating(ctx context.Context, id string) error
	RecordAttempt(ctx context.Context, id string, attempts int) error
	Complete(ctx context.Context, id string, result any, attempts int) error
	Fail(ctx context.Context, id string, status jobs.Status, message string, attempts int) error
	Remove(ctx context.Context, id string) (bool, error)
}

// StoryboardService runs storyboard generations and records them as jobs.
type StoryboardService struct {
	store     JobStore
	registry  *events.Registry
	generator *storyboard.Generator
	defaults  config.Storyboard
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewStoryboardService wires the store, event registry, and generator.
func NewStoryboardService(store JobStore, registry *events.Registry, generator *storyboard.Generator, defaults config.Storyboard, logger *slog.Logger) *StoryboardService {
	if registry == nil {
		registry = events.NewRegistry(0)
	}
	return &StoryboardService{
		store:     store,
		registry:  registry,
		generator: generator,
		defaults:  defaults,
		logger:    logging.NewComponentLogger(logger, "api"),
	}
}

// Plan parses and partitions a transcript without calling a model.
func (s *StoryboardService) Plan(raw []transcript.RawRow) (*PlanResponse, error) {
	rows, err := parseTranscript(raw)
	if err != nil {
		return nil, err
	}
	normalized, plan := storyboard.Plan(rows)
	return &PlanResponse{Seconds: len(normalized), Clips: plan}, nil
}

// Generate records a job and generates its storyboard before returning.
// Validation exhaustion is reported as an error alongside the failed job.
func (s *StoryboardService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	job, sbReq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	stream := s.registry.Open(job.ID)
	result, runErr := s.run(ctx, job.ID, sbReq, stream)

	stored, err := s.store.Get(context.WithoutCancel(ctx), job.ID)
	if err != nil {
		return nil, fmt.Errorf("reload job: %w", err)
	}
	resp := &GenerateResponse{Job: FromJob(stored, false), Storyboard: result}
	return resp, runErr
}

// Start records a job and generates its storyboard in the background. The
// generation is bound to ctx, which should outlive the caller's request.
func (s *StoryboardService) Start(ctx context.Context, req GenerateRequest) (*Job, error) {
	job, sbReq, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	stream := s.registry.Open(job.ID)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(ctx, job.ID, sbReq, stream)
	}()
	dto := FromJob(job, false)
	return &dto, nil
}

// Wait blocks until every background generation has finished.
func (s *StoryboardService) Wait() {
	s.wg.Wait()
}

// Job fetches a single job with its storyboard.
func (s *StoryboardService) Job(ctx context.Context, id string) (*Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "get", fmt.Sprintf("job %s not found", id), nil)
	}
	dto := FromJob(job, true)
	return &dto, nil
}

// Jobs lists jobs newest first, optionally filtered by status.
func (s *StoryboardService) Jobs(ctx context.Context, limit int, statuses ...jobs.Status) ([]Job, error) {
	list, err := s.store.List(ctx, jobs.ListOptions{Statuses: statuses, Limit: limit})
	if err != nil {
		return nil, err
	}
	return FromJobs(list), nil
}

// Stats returns job counts keyed by status string.
func (s *StoryboardService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeJobStats(stats), nil
}

// ErrJobActive is returned when removing a job that is still generating.
var ErrJobActive = errors.New("job is still active")

// Remove deletes a finished job record.
func (s *StoryboardService) Remove(ctx context.Context, id string) error {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		return services.Wrap(services.ErrNotFound, "jobs", "remove", fmt.Sprintf("job %s not found", id), nil)
	}
	if !job.Status.Terminal() {
		return fmt.Errorf("remove job %s: %w", id, ErrJobActive)
	}
	if _, err := s.store.Remove(ctx, id); err != nil {
		return err
	}
	return nil
}

// Events returns the live event stream of a job, if it is still open or has
// subscribers.
func (s *StoryboardService) Events(id string) (*events.Stream, bool) {
	return s.registry.Get(id)
}

func (s *StoryboardService) prepare(ctx context.Context, req GenerateRequest) (*jobs.Job, storyboard.Request, error) {
	rows, err := parseTranscript(req.Transcript)
	if err != nil {
		return nil, storyboard.Request{}, err
	}
	if len(rows) == 0 {
		return nil, storyboard.Request{}, services.Wrap(services.ErrValidation, "storyboard", "parse transcript", "transcript has no rows", nil)
	}

	opts := storyboard.Options{
		FocalPoints:    cleanList(req.FocalPoints),
		AnimationStyle: transcript.CleanText(req.AnimationStyle),
		Setting:        transcript.CleanText(req.Setting),
	}
	if len(opts.FocalPoints) == 0 {
		opts.FocalPoints = cleanList(s.defaults.FocalPoints)
	}
	if opts.AnimationStyle == "" {
		opts.AnimationStyle = transcript.CleanText(s.defaults.AnimationStyle)
	}
	if opts.Setting == "" {
		opts.Setting = transcript.CleanText(s.defaults.Setting)
	}
	passes := req.MaxRepairPasses
	if passes == nil {
		passes = storyboard.RepairPasses(s.defaults.MaxRepairPasses)
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	job, err := s.store.Create(ctx, jobs.NewJob{
		Source:         source,
		AnimationStyle: opts.AnimationStyle,
		Setting:        opts.Setting,
		FocalPoints:    opts.FocalPoints,
		Transcript:     rows,
	})
	if err != nil {
		return nil, storyboard.Request{}, fmt.Errorf("create job: %w", err)
	}
	return job, storyboard.Request{Rows: rows, Options: opts, MaxRepairPasses: passes}, nil
}

func (s *StoryboardService) run(ctx context.Context, jobID string, req storyboard.Request, stream *events.Stream) (*storyboard.Result, error) {
	ctx = services.WithStage(services.WithJobID(ctx, jobID), "generate")
	logger := logging.WithContext(ctx, s.logger)
	// Job records must be written even when ctx has been cancelled.
	persistCtx := context.WithoutCancel(ctx)
	pub := &jobPublisher{stream: stream, store: s.store, jobID: jobID, ctx: persistCtx, logger: logger}
	defer stream.Close()

	if err := s.store.MarkGenerating(ctx, jobID); err != nil {
		logger.Warn("mark generating failed", logging.Error(err))
	}

	result, err := s.generator.Generate(ctx, req, pub)
	if err != nil {
		status := services.FailureStatus(err)
		attempts := pub.attempts
		var exhausted *storyboard.ExhaustedError
		if errors.As(err, &exhausted) {
			attempts = len(exhausted.Attempts)
		}
		if failErr := s.store.Fail(persistCtx, jobID, status, err.Error(), attempts); failErr != nil {
			logging.ErrorWithContext(logger, "record job failure failed", "job_persist_failed", logging.Error(failErr))
		}
		logger.Info("storyboard job ended",
			logging.String("status", string(status)),
			logging.Int("attempts", attempts),
		)
		pub.flush(events.Event{Type: events.TypeFailed, Attempt: attempts, Message: err.Error()})
		return nil, err
	}

	if err := s.store.Complete(persistCtx, jobID, result, len(result.Attempts)); err != nil {
		logging.ErrorWithContext(logger, "record job result failed", "job_persist_failed", logging.Error(err))
		pub.flush(events.Event{Type: events.TypeFailed, Message: err.Error()})
		return result, fmt.Errorf("record job result: %w", err)
	}
	logger.Info("storyboard job ended",
		logging.String("status", string(jobs.StatusCompleted)),
		logging.Int("attempts", len(result.Attempts)),
	)
	pub.flush(events.Event{Type: events.TypeCompleted, Message: fmt.Sprintf("%d clips", len(result.Clips))})
	return result, nil
}

// jobPublisher forwards generator progress to the job stream and records the
// attempt count. Terminal events are held until the job record is final.
type jobPublisher struct {
	stream   *events.Stream
	store    JobStore
	jobID    string
	ctx      context.Context
	logger   *slog.Logger
	attempts int
	terminal *events.Event
}

func (p *jobPublisher) Publish(evt events.Event) {
	if evt.Type.Terminal() {
		held := evt
		p.terminal = &held
		return
	}
	if evt.Type == events.TypeAttemptStarted {
		p.attempts = evt.Attempt
		if err := p.store.RecordAttempt(p.ctx, p.jobID, evt.Attempt); err != nil {
			p.logger.Warn("record attempt failed", logging.Error(err))
		}
	}
	p.stream.Publish(evt)
}

// flush publishes the held terminal event, or fallback when the generator
// ended without one.
func (p *jobPublisher) flush(fallback events.Event) {
	if p.terminal != nil && p.terminal.Type == fallback.Type {
		p.stream.Publish(*p.terminal)
		return
	}
	p.stream.Publish(fallback)
}

func parseTranscript(raw []transcript.RawRow) ([]transcript.Row, error) {
	rows, err := transcript.ParseRows(raw)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "storyboard", "parse transcript", "", err)
	}
	return rows, nil
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
