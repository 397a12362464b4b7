package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shouni/go-gemini-client/gemini"
	"google.golang.org/genai"
)

const (
	DefaultModel       = "gemini-2.5-flash"
	defaultTemperature = float32(0.2)
)

// Config captures the Gemini connection settings.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Completer issues single-turn Gemini requests. Gemini has no separate
// system role on this client, so the system and user messages are joined
// into one prompt.
type Completer struct {
	client gemini.GenerativeModel
	model  string
}

// NewCompleter initialises the underlying Gemini client.
func NewCompleter(ctx context.Context, cfg Config) (*Completer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	temperature := defaultTemperature
	if cfg.Temperature > 0 {
		temperature = float32(cfg.Temperature)
	}
	client, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      apiKey,
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: init client: %w", err)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Completer{client: client, model: model}, nil
}

// Model reports the model identifier requests are sent to.
func (c *Completer) Model() string {
	return c.model
}

// CompleteJSON implements llm.Completer.
func (c *Completer) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	prompt, err := joinPrompt(systemPrompt, userPrompt)
	if err != nil {
		return "", err
	}
	resp, err := c.client.GenerateContent(ctx, prompt, c.model)
	if err != nil {
		return "", fmt.Errorf("gemini complete: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errors.New("gemini complete: empty content")
	}
	return strings.TrimSpace(resp.Text), nil
}

func joinPrompt(systemPrompt, userPrompt string) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", errors.New("gemini complete: system prompt required")
	case userPrompt == "":
		return "", errors.New("gemini complete: user prompt required")
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nRespond with a single JSON object and nothing else.\n\n")
	b.WriteString(userPrompt)
	return b.String(), nil
}
