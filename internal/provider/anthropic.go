package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evalerr"
	"github.com/sells-group/proposal-eval/pkg/anthropic"
)

// Anthropic submits prompts through the Messages API. The system prompt is
// sent as a cached block so repeated evaluations of the same mode reuse it.
type Anthropic struct {
	client   anthropic.Client
	model    string
	settings Settings
}

// NewAnthropic creates an Anthropic adapter over client.
func NewAnthropic(client anthropic.Client, model string, s Settings) *Anthropic {
	return &Anthropic{client: client, model: model, settings: s}
}

func (a *Anthropic) Name() string         { return config.ProviderAnthropic }
func (a *Anthropic) Model() string        { return a.model }
func (a *Anthropic) Temperature() float64 { return a.settings.Temperature }

// Submit sends one user message carrying payload.
func (a *Anthropic) Submit(ctx context.Context, systemPrompt, payload string) (*Completion, error) {
	temp := a.settings.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   a.settings.MaxTokens,
		System:      systemPrompt,
		CacheTTL:    anthropic.CacheTTL5m,
		Prompt:      payload,
		Temperature: &temp,
	})
	if err != nil {
		return nil, classify(a.Name(), anthropic.StatusCode(err), err)
	}

	if resp.Text == "" {
		return nil, classify(a.Name(), 0, eris.Errorf("anthropic: empty response (stop reason %q)", resp.StopReason))
	}
	if resp.Truncated() {
		return nil, evalerr.New(evalerr.KindMalformedProviderOutput, "anthropic: output truncated at %d tokens", a.settings.MaxTokens)
	}

	model := resp.Model
	if model == "" {
		model = a.model
	}
	return &Completion{
		Text:  resp.Text,
		Model: model,
		Usage: cost.Usage{
			InputTokens:      resp.Usage.InputTokens,
			OutputTokens:     resp.Usage.OutputTokens,
			CacheWriteTokens: resp.Usage.CacheCreationInputTokens,
			CacheReadTokens:  resp.Usage.CacheReadInputTokens,
		},
	}, nil
}
