package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"storyboarder/internal/services/llm"
)

const defaultRateBurst = 1

// NewLimiter paces completions to requestsPerMinute. A non-positive value
// disables pacing.
func NewLimiter(requestsPerMinute int) *rate.Limiter {
	if requestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, defaultRateBurst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), defaultRateBurst)
}

// RateLimitedCompleter waits on a shared limiter before every completion.
type RateLimitedCompleter struct {
	next    llm.Completer
	limiter *rate.Limiter
}

// NewRateLimitedCompleter wraps next. A nil limiter passes calls through.
func NewRateLimitedCompleter(next llm.Completer, limiter *rate.Limiter) *RateLimitedCompleter {
	return &RateLimitedCompleter{next: next, limiter: limiter}
}

// CompleteJSON waits for a token and then delegates.
func (c *RateLimitedCompleter) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}
	return c.next.CompleteJSON(ctx, systemPrompt, userPrompt)
}
