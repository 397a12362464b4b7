// Package gemini adapts Google's Gemini models to the llm.Completer contract
// so storyboards can be generated without an OpenAI-compatible gateway.
package gemini
