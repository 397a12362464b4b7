// Package config loads, normalizes, and validates storyboarder configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and GEMINI_API_KEY. The Config type centralizes every
// knob the CLI and API server need, from the completion provider to the
// storyboard repair budget.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
