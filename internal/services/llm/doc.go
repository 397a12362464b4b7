// Package llm talks to OpenAI-compatible chat completion endpoints (OpenRouter
// by default) in JSON response mode.
//
// The Client retries transport-level failures (429, 5xx, timeouts, empty
// content) with capped exponential backoff; it never interprets the payload.
// DecodeLLMJSON and the extraction helpers are the tolerant parsing layer for
// model output: code fences, prose around the object, and truncated arrays.
// CachedCompleter memoises identical requests when enabled in config.
package llm
