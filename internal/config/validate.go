package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateStoryboard(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenRouter, ProviderGemini:
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", ProviderOpenRouter, ProviderGemini, c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return errors.New("llm.temperature must be between 0 and 2")
	}
	if c.LLM.CacheTTLSeconds < 0 {
		return errors.New("llm.cache_ttl_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateStoryboard() error {
	if c.Storyboard.MaxRepairPasses < 0 {
		return errors.New("storyboard.max_repair_passes must be zero or positive")
	}
	if c.Storyboard.MaxRepairPasses > 10 {
		return errors.New("storyboard.max_repair_passes must be at most 10")
	}
	if c.Storyboard.AttemptTimeoutSeconds < 0 {
		return errors.New("storyboard.attempt_timeout_seconds must be zero or positive")
	}
	return nil
}

func (c *Config) validateBatch() error {
	if err := ensurePositiveMap(map[string]int{
		"batch.concurrency":         c.Batch.Concurrency,
		"batch.requests_per_minute": c.Batch.RequestsPerMinute,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
