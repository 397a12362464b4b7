// Package providers builds the configured text completion backend.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storyboarder/internal/config"
	"storyboarder/internal/services"
	"storyboarder/internal/services/gemini"
	"storyboarder/internal/services/llm"
)

// Provider is a ready-to-use completion backend.
type Provider struct {
	// Completer is the cache-wrapped client handed to the generator.
	Completer llm.Completer
	Name      string
	Model     string
	health    func(context.Context) error
}

// Open builds the provider selected by cfg.LLM.Provider.
func Open(ctx context.Context, cfg *config.Config) (*Provider, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "open provider", "configuration is required", nil)
	}
	if err := cfg.RequireLLM(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "llm", "open provider", "", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case config.ProviderGemini:
		client, err := gemini.NewCompleter(ctx, gemini.Config{
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		})
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "llm", "open gemini", "", err)
		}
		return &Provider{
			Completer: llm.NewCachedCompleter(client, cfg.CacheTTL()),
			Name:      config.ProviderGemini,
			Model:     client.Model(),
			health:    func(ctx context.Context) error { return probe(ctx, client) },
		}, nil

	case config.ProviderOpenRouter, "":
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			Temperature:    cfg.LLM.Temperature,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		return &Provider{
			Completer: llm.NewCachedCompleter(client, cfg.CacheTTL()),
			Name:      config.ProviderOpenRouter,
			Model:     client.Model(),
			health:    client.HealthCheck,
		}, nil

	default:
		return nil, services.Wrap(services.ErrConfiguration, "llm", "open provider",
			fmt.Sprintf("unknown provider %q", cfg.LLM.Provider), nil)
	}
}

// HealthCheck issues a minimal completion against the provider.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if p == nil || p.health == nil {
		return errors.New("provider not configured")
	}
	if err := p.health(ctx); err != nil {
		return services.Wrap(services.ErrExternalTool, "llm", "health check", p.Name+" "+p.Model, err)
	}
	return nil
}

func probe(ctx context.Context, completer llm.Completer) error {
	content, err := completer.CompleteJSON(ctx, "You are a health check endpoint.", `Reply with {"ok": true}.`)
	if err != nil {
		return err
	}
	var payload struct {
		OK bool `json:"ok"`
	}
	if err := llm.DecodeLLMJSON(content, &payload); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if !payload.OK {
		return errors.New("health response did not confirm ok")
	}
	return nil
}
