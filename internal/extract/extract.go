// Package extract pulls text out of proposal documents. Extraction is best
// effort: a proposal whose document cannot be read keeps its declared scope
// text.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/proposal-eval/internal/config"
	"github.com/sells-group/proposal-eval/internal/model"
)

// Providers accepted by extraction.provider.
const (
	ProviderNone    = "none"
	ProviderLocal   = "local"
	ProviderMistral = "mistral"
)

// ErrNoDocument is returned for proposals without an attached document.
var ErrNoDocument = eris.New("extract: proposal has no document")

// Extractor extracts the text of a proposal's document.
type Extractor interface {
	ExtractText(ctx context.Context, p model.Proposal) (string, error)
}

// NewExtractor creates an Extractor based on config. The "none" provider
// returns nil; Apply treats a nil Extractor as a no-op.
func NewExtractor(cfg config.ExtractionConfig) (Extractor, error) {
	switch cfg.Provider {
	case ProviderNone, "":
		return nil, nil
	case ProviderLocal:
		return NewPdfToText(cfg.PdfToTextPath), nil
	case ProviderMistral:
		if cfg.MistralKey == "" {
			return nil, eris.New("extract: mistral provider requires extraction.mistral_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel), nil
	default:
		return nil, eris.Errorf("extract: unknown provider %q", cfg.Provider)
	}
}

// Apply runs ex over inputs one at a time and stores non-blank results in
// Proposal.ExtractedText. Each call gets its own timeout; failures are
// logged and skipped. It returns the number of proposals extracted, and an
// error only when ctx ends.
func Apply(ctx context.Context, ex Extractor, inputs []model.EvaluationInput, timeout time.Duration) (int, error) {
	if ex == nil {
		return 0, nil
	}

	n := 0
	for i := range inputs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		p := inputs[i].Proposal
		text, err := extractOne(ctx, ex, p, timeout)
		switch {
		case err == nil && strings.TrimSpace(text) != "":
			inputs[i].Proposal.ExtractedText = strings.TrimSpace(text)
			n++
		case err == nil:
			zap.L().Debug("extract: empty document text", zap.String("proposal_id", p.ID))
		case eris.Is(err, ErrNoDocument):
		default:
			zap.L().Warn("extract: falling back to scope text",
				zap.String("proposal_id", p.ID),
				zap.Error(err),
			)
		}
	}
	return n, nil
}

func extractOne(ctx context.Context, ex Extractor, p model.Proposal, timeout time.Duration) (string, error) {
	if p.DocumentPath == "" && p.DocumentURL == "" {
		return "", ErrNoDocument
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return ex.ExtractText(ctx, p)
}
