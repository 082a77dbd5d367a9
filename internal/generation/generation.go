// Package generation synthesizes natural-language answers from assembled
// prompts using external LLM providers, with retries, fallback providers,
// and a response cache.
package generation

import "context"

// Generator produces a text completion for a fully assembled prompt.
type Generator interface {
	// Complete sends the prompt to a generation capability and returns the
	// completion text.
	Complete(ctx context.Context, prompt string) (string, error)
}
