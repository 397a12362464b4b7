package storyboard

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"storyboarder/internal/logging"
	"storyboarder/internal/services/llm"
)

// Candidate is one synthesized storyboard before validation.
type Candidate struct {
	Clips []Clip
	// Raw is the unmodified model output.
	Raw string
	// Degraded is set when the model returned nothing usable and every clip
	// was built from compliance defaults.
	Degraded bool
	// Salvaged is set when clips were recovered from truncated output.
	Salvaged bool
}

// Synthesizer turns a clip plan into a compliant candidate storyboard using
// a text completion model.
type Synthesizer struct {
	completer      llm.Completer
	attemptTimeout time.Duration
	logger         *slog.Logger
}

// NewSynthesizer constructs a synthesizer. A zero attemptTimeout leaves the
// completion call bounded only by ctx.
func NewSynthesizer(completer llm.Completer, attemptTimeout time.Duration, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Synthesizer{completer: completer, attemptTimeout: attemptTimeout, logger: logger}
}

// Synthesize requests prompts for plan and runs the answer through the
// compliance layer. Completion failures and per-attempt timeouts are treated
// as an empty answer; the only error returned is ctx's own.
func (s *Synthesizer) Synthesize(ctx context.Context, plan []PlanEntry, opts Options, prior *Attempt) (Candidate, error) {
	system, user := BuildMessages(plan, opts, prior)
	raw, err := s.complete(ctx, system, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Candidate{}, ctxErr
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "completion failed; using compliance defaults", "storyboard_completion_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check llm connectivity, api key, and storyboard.attempt_timeout_seconds"),
			logging.String(logging.FieldImpact, "prompts for this attempt are built from defaults"),
		)
		raw = ""
	}

	resp := decodeUntrusted(raw)
	switch {
	case resp.Empty && raw != "":
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "model output held no clips; using compliance defaults", "storyboard_output_unparsable",
			logging.Int("raw_bytes", len(raw)),
			logging.String(logging.FieldImpact, "prompts for this attempt are built from defaults"),
		)
	case resp.Salvaged:
		s.logger.Debug("salvaged truncated model output", logging.Int("clips", len(resp.Clips)), logging.Int("planned", len(plan)))
	case len(resp.Clips) != len(plan):
		s.logger.Debug("model clip count differs from plan", logging.Int("clips", len(resp.Clips)), logging.Int("planned", len(plan)))
	}

	return Candidate{
		Clips:    Comply(plan, resp, opts),
		Raw:      raw,
		Degraded: resp.Empty,
		Salvaged: resp.Salvaged,
	}, nil
}

func (s *Synthesizer) complete(ctx context.Context, system, user string) (string, error) {
	if s.completer == nil {
		return "", errors.New("no completion client configured")
	}
	callCtx := ctx
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}
	return s.completer.CompleteJSON(callCtx, system, user)
}
