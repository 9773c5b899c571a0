// Package providers implements thin HTTP clients for the language-model
// backends used by comment consolidation.
package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCredential is returned by a constructor when the provider's API-key
// environment variable is absent. Key validity is only discovered on the
// first call.
var ErrNoCredential = errors.New("providers: credential not set")

// Client is the provider abstraction. The model is chosen per call so one
// client can serve every model in its catalog.
type Client interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// New creates a provider client by name.
func New(provider string) (Client, error) {
	switch provider {
	case "anthropic":
		return NewAnthropic()
	case "openai":
		return NewOpenAI()
	case "gemini", "google":
		return NewGemini()
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Names lists the supported provider names in display order.
func Names() []string {
	return []string{"gemini", "openai", "anthropic"}
}

// Models returns the static model catalog for a provider. Unknown providers
// get an empty catalog rather than an error.
func Models(provider string) []string {
	switch provider {
	case "gemini", "google":
		return []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"}
	case "openai":
		return []string{"gpt-4o-mini", "gpt-4o", "gpt-4.1-mini"}
	case "anthropic":
		return []string{"claude-3-5-haiku-latest", "claude-3-5-sonnet-latest", "claude-sonnet-4-0"}
	default:
		return nil
	}
}
