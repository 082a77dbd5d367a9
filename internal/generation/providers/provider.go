// Package providers contains clients for the external text-generation
// services that answer synthesis can run against.
package providers

import (
	"context"
	"time"
)

const (
	// Provider constants
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderXAI       = "xai"

	// Default settings
	DefaultTimeout         = 30 * time.Second
	DefaultMaxOutputTokens = 1024
)

// LLMProvider defines the interface for text-generation services. Every
// implementation pins sampling temperature to zero so the same prompt always
// yields the same completion.
type LLMProvider interface {
	// Complete sends a fully assembled prompt and returns the completion.
	Complete(ctx context.Context, prompt string) (string, error)

	// Name returns the provider name.
	Name() string
}

// Config holds common configuration for generation providers.
type Config struct {
	APIKey  string
	ModelID string
}
