package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/cost"
	"github.com/sells-group/proposal-eval/internal/evalerr"
)

// Gemini submits prompts through the Google GenAI SDK.
type Gemini struct {
	client   *genai.Client
	model    string
	settings Settings
}

// NewGemini creates a Gemini adapter for the Gemini API backend. An empty
// baseURL keeps the SDK default.
func NewGemini(ctx context.Context, apiKey, model, baseURL string, s Settings) (*Gemini, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, evalerr.New(evalerr.KindProviderConfiguration, "gemini api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cc.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, evalerr.Wrap(err, evalerr.KindProviderConfiguration, "create genai client")
	}

	return &Gemini{client: client, model: model, settings: s}, nil
}

func (g *Gemini) Name() string         { return config.ProviderGemini }
func (g *Gemini) Model() string        { return g.model }
func (g *Gemini) Temperature() float64 { return g.settings.Temperature }

// Submit sends payload as the user turn with systemPrompt as the system
// instruction and asks for a JSON response.
func (g *Gemini) Submit(ctx context.Context, systemPrompt, payload string) (*Completion, error) {
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(g.settings.Temperature)),
		MaxOutputTokens:   int32(g.settings.MaxTokens),
		ResponseMIMEType:  "application/json",
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(payload), cfg)
	if err != nil {
		return nil, classify(g.Name(), geminiStatus(err), eris.Wrap(err, "gemini: generate content"))
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, classify(g.Name(), 0, eris.New("gemini: empty response"))
	}

	c := &Completion{Text: text, Model: g.model}
	if resp.ModelVersion != "" {
		c.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		c.Usage = cost.Usage{
			InputTokens:  int64(u.PromptTokenCount),
			OutputTokens: int64(u.CandidatesTokenCount),
		}
	}
	return c, nil
}

func geminiStatus(err error) int {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 0
}
