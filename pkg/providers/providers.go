// Package providers wraps the hosted LLM APIs behind a single completion
// interface so a policy can be driven by either of them.
package providers

import (
	"context"
	"fmt"
	"strings"
)

// Client completes a single prompt.
type Client interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

type ProviderParams struct {
	BaseURL string
	APIKey  string
}

type ProviderOption func(*ProviderParams)

func WithBaseURL(baseURL string) ProviderOption {
	return func(p *ProviderParams) {
		p.BaseURL = baseURL
	}
}

func WithAPIKey(apiKey string) ProviderOption {
	return func(p *ProviderParams) {
		p.APIKey = apiKey
	}
}

// New returns the client registered under name ("openai" or "gemini").
func New(ctx context.Context, name string, opts ...ProviderOption) (Client, error) {
	switch strings.ToLower(name) {
	case "openai":
		return OpenAi(ctx, opts...), nil
	case "gemini", "google":
		client, err := Gemini(ctx, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

// DefaultModel is the model used when a policy does not name one.
func DefaultModel(name string) string {
	if strings.ToLower(name) == "openai" {
		return "gpt-4o-mini"
	}
	return "gemini-2.0-flash"
}
