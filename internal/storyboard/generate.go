package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"storyboarder/internal/events"
	"storyboarder/internal/logging"
	"storyboarder/internal/services"
	"storyboarder/internal/services/llm"
	"storyboarder/internal/transcript"
)

// DefaultMaxRepairPasses is the number of repair attempts made after the
// first one when a request does not say otherwise.
const DefaultMaxRepairPasses = 2

// ErrEmptyTranscript is returned when there is nothing to storyboard.
var ErrEmptyTranscript = errors.New("storyboard: transcript has no rows")

// State is a step of the generation state machine.
type State int

const (
	StateAttempting State = iota
	StateValidating
	StateRetrying
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "attempting"
	case StateValidating:
		return "validating"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ExhaustedError reports a storyboard that still failed validation after the
// last permitted repair pass. It matches services.ErrValidation.
type ExhaustedError struct {
	Attempts []Attempt
	// Errors is the validation error list of the final attempt.
	Errors []string
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "storyboard failed validation after %d attempts (%d errors):", len(e.Attempts), len(e.Errors))
	for _, msg := range e.Errors {
		b.WriteString("\n  - ")
		b.WriteString(msg)
	}
	return b.String()
}

func (e *ExhaustedError) Unwrap() error {
	return services.ErrValidation
}

// ValidateFunc validates a candidate storyboard.
type ValidateFunc func(rows []transcript.Row, opts Options, clips []Clip) []string

// DefaultValidate adapts Validate to ValidateFunc.
func DefaultValidate(rows []transcript.Row, opts Options, clips []Clip) []string {
	return Validate(rows, opts.FocalPoints, opts.Setting, opts.AnimationStyle, clips)
}

// Generator runs the attempt, validate, and repair loop.
type Generator struct {
	synth    *Synthesizer
	validate ValidateFunc
	logger   *slog.Logger
	now      func() time.Time
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*generatorConfig)

type generatorConfig struct {
	attemptTimeout time.Duration
	validate       ValidateFunc
	logger         *slog.Logger
}

// WithAttemptTimeout bounds each completion call.
func WithAttemptTimeout(d time.Duration) GeneratorOption {
	return func(c *generatorConfig) { c.attemptTimeout = d }
}

// WithValidator replaces the validator.
func WithValidator(fn ValidateFunc) GeneratorOption {
	return func(c *generatorConfig) {
		if fn != nil {
			c.validate = fn
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) GeneratorOption {
	return func(c *generatorConfig) { c.logger = logger }
}

// NewGenerator constructs a generator around completer.
func NewGenerator(completer llm.Completer, opts ...GeneratorOption) *Generator {
	cfg := generatorConfig{validate: DefaultValidate}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := logging.NewComponentLogger(cfg.logger, "storyboard")
	return &Generator{
		synth:    NewSynthesizer(completer, cfg.attemptTimeout, logger),
		validate: cfg.validate,
		logger:   logger,
		now:      time.Now,
	}
}

// Plan normalizes rows and partitions them. It is the offline half of
// Generate.
func Plan(rows []transcript.Row) ([]transcript.Row, []PlanEntry) {
	normalized := transcript.Normalize(rows)
	return normalized, Partition(normalized)
}

// Generate produces a validated storyboard for req. Progress is published to
// pub, which may be nil. The returned error is ErrEmptyTranscript, ctx's
// error, or an *ExhaustedError.
func (g *Generator) Generate(ctx context.Context, req Request, pub events.Publisher) (*Result, error) {
	rows, plan := Plan(req.Rows)
	if len(plan) == 0 {
		return nil, ErrEmptyTranscript
	}
	budget := DefaultMaxRepairPasses
	if req.MaxRepairPasses != nil {
		budget = max(*req.MaxRepairPasses, 0)
	}
	opts := req.Options
	logger := logging.WithContext(ctx, g.logger)

	logger.Info("storyboard generation started",
		logging.Int("seconds", len(rows)),
		logging.Int("clips", len(plan)),
		logging.Int("max_repair_passes", budget),
	)

	var (
		history   []Attempt
		candidate Candidate
		started   time.Time
		state     = StateAttempting
	)
	for {
		switch state {
		case StateAttempting:
			number := len(history) + 1
			var prior *Attempt
			if len(history) > 0 {
				last := history[len(history)-1].clone()
				prior = &last
			}
			events.Publish(pub, events.Event{
				Type:    events.TypeAttemptStarted,
				Attempt: number,
				Message: fmt.Sprintf("attempt %d of %d", number, budget+1),
			})
			started = g.now()
			var err error
			candidate, err = g.synth.Synthesize(ctx, plan, opts, prior)
			if err != nil {
				events.Publish(pub, events.Event{Type: events.TypeFailed, Attempt: number, Message: err.Error()})
				return nil, err
			}
			state = StateValidating

		case StateValidating:
			errs := g.validate(rows, opts, candidate.Clips)
			attempt := Attempt{
				Number:   len(history) + 1,
				Clips:    candidate.Clips,
				Raw:      candidate.Raw,
				Errors:   errs,
				Degraded: candidate.Degraded,
				Duration: g.now().Sub(started),
			}
			history = append(history, attempt.clone())
			switch {
			case attempt.Valid():
				state = StateDone
			case len(history) <= budget:
				state = StateRetrying
			default:
				state = StateFailed
			}
			logger.Debug("storyboard attempt validated",
				logging.Int(logging.FieldAttempt, attempt.Number),
				logging.Int("errors", len(errs)),
				logging.Bool("degraded", attempt.Degraded),
				logging.String("next_state", state.String()),
			)

		case StateRetrying:
			last := history[len(history)-1]
			attrs := append(logging.DecisionAttrs("repair_pass", "retry", last.Errors[0]),
				logging.Int(logging.FieldAttempt, last.Number),
				logging.Int("errors", len(last.Errors)),
			)
			logger.Info("storyboard attempt failed validation; repairing", logging.Args(attrs...)...)
			events.Publish(pub, events.Event{
				Type:    events.TypeAttemptInvalid,
				Attempt: last.Number,
				Message: fmt.Sprintf("%d validation errors", len(last.Errors)),
				Errors:  last.Errors,
			})
			state = StateAttempting

		case StateDone:
			last := history[len(history)-1]
			logger.Info("storyboard generation completed",
				logging.Int("attempts", len(history)),
				logging.Int("clips", len(last.Clips)),
				logging.Bool("degraded", last.Degraded),
			)
			events.Publish(pub, events.Event{
				Type:    events.TypeCompleted,
				Attempt: last.Number,
				Message: fmt.Sprintf("%d clips", len(last.Clips)),
			})
			clips := append([]Clip(nil), last.Clips...)
			return &Result{Rows: Rows(clips), Clips: clips, Attempts: cloneHistory(history)}, nil

		case StateFailed:
			last := history[len(history)-1]
			logging.ErrorWithContext(logger, "storyboard generation exhausted repair passes", "storyboard_exhausted",
				logging.Int("attempts", len(history)),
				logging.Int("errors", len(last.Errors)),
				logging.String(logging.FieldErrorHint, "inspect the error list; a setting or style containing a continuity phrase can never validate"),
			)
			events.Publish(pub, events.Event{
				Type:    events.TypeFailed,
				Attempt: last.Number,
				Message: "validation failed after final repair pass",
				Errors:  last.Errors,
			})
			return nil, &ExhaustedError{Attempts: cloneHistory(history), Errors: append([]string(nil), last.Errors...)}
		}
	}
}

func cloneHistory(history []Attempt) []Attempt {
	out := make([]Attempt, len(history))
	for i, a := range history {
		out[i] = a.clone()
	}
	return out
}

// GenerateStoryboardClips is the one-call form of Generator.Generate with
// default options. maxRepairPasses, when given, overrides
// DefaultMaxRepairPasses.
func GenerateStoryboardClips(
	ctx context.Context,
	completer llm.Completer,
	rows []transcript.Row,
	focalPoints []string,
	animationStyle, setting string,
	maxRepairPasses ...int,
) (*Result, error) {
	req := Request{
		Rows: rows,
		Options: Options{
			FocalPoints:    focalPoints,
			AnimationStyle: animationStyle,
			Setting:        setting,
		},
	}
	if len(maxRepairPasses) > 0 {
		req.MaxRepairPasses = RepairPasses(maxRepairPasses[0])
	}
	return NewGenerator(completer).Generate(ctx, req, nil)
}
