// Package provider adapts text-generation services to the single call the
// narrative enricher makes: submit a system prompt and a payload, get text.
// The set of adapters is closed and one is selected from configuration at
// startup.
package provider

import (
	"context"
	"errors"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/internal/resilience"
	"github.com/sells-group/proposal-eval/pkg/anthropic"
	"github.com/sells-group/proposal-eval/pkg/perplexity"
)

// Completion is the raw text a provider returned for one request.
type Completion struct {
	Text  string
	Model string
	Usage cost.Usage
}

// Provider submits one system prompt and user payload to a text-generation
// service. Implementations do not retry.
type Provider interface {
	Name() string
	Model() string
	Temperature() float64
	Submit(ctx context.Context, systemPrompt, payload string) (*Completion, error)
}

// Settings are the generation parameters shared by every adapter.
type Settings struct {
	Temperature float64
	MaxTokens   int64
}

// SettingsFrom extracts generation settings from cfg.
func SettingsFrom(cfg config.ProviderConfig) Settings {
	return Settings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens}
}

// New builds the configured provider wrapped in a process-wide rate limiter.
// A missing credential or unknown provider name is a configuration error.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	if err := cfg.ValidateProvider(); err != nil {
		return nil, err
	}
	s := SettingsFrom(cfg.Provider)

	var p Provider
	switch cfg.Provider.Name {
	case config.ProviderAnthropic:
		p = NewAnthropic(anthropic.NewClient(cfg.Anthropic.Key, ""), cfg.Anthropic.Model, s)
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.Gemini.Key, cfg.Gemini.Model, "", s)
		if err != nil {
			return nil, err
		}
		p = g
	case config.ProviderPerplexity:
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		p = NewPerplexity(client, cfg.Perplexity.Model, s)
	default:
		return nil, evalerr.New(evalerr.KindProviderConfiguration, "unknown provider %q", cfg.Provider.Name)
	}

	return NewRateLimited(p, cfg.Provider.RequestsPerMinute), nil
}

// classify maps a failed call to a ProviderHTTPError. status is the HTTP
// status of the response, or 0 when none arrived. Context errors are passed
// through so the caller can tell a deadline from a cancellation.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if status > 0 {
		return evalerr.ProviderHTTP(err, status, resilience.IsTransientHTTPStatus(status), provider)
	}
	return evalerr.ProviderHTTP(err, 0, resilience.IsTransient(err), provider)
}
