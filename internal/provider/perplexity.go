package provider

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/pkg/perplexity"
)

// Perplexity submits prompts through the chat completions API.
type Perplexity struct {
	client   perplexity.Client
	model    string
	settings Settings
}

// NewPerplexity creates a Perplexity adapter over client.
func NewPerplexity(client perplexity.Client, model string, s Settings) *Perplexity {
	return &Perplexity{client: client, model: model, settings: s}
}

func (p *Perplexity) Name() string         { return config.ProviderPerplexity }
func (p *Perplexity) Model() string        { return p.model }
func (p *Perplexity) Temperature() float64 { return p.settings.Temperature }

// Submit sends a system and a user message. Web search is disabled so the
// narrative stays grounded in the payload.
func (p *Perplexity) Submit(ctx context.Context, systemPrompt, payload string) (*Completion, error) {
	temp := p.settings.Temperature
	maxTokens := int(p.settings.MaxTokens)
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: p.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: payload},
		},
		Temperature:   &temp,
		MaxTokens:     &maxTokens,
		DisableSearch: true,
	})
	if err != nil {
		var se *perplexity.StatusError
		status := 0
		if errors.As(err, &se) {
			status = se.StatusCode
		}
		return nil, classify(p.Name(), status, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, classify(p.Name(), 0, eris.New("perplexity: empty response"))
	}

	return &Completion{
		Text:  text,
		Model: p.model,
		Usage: cost.Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
	}, nil
}
