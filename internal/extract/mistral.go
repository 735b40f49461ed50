package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/model"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "mistral-ocr-latest"
	maxOCRErrorBody     = 2 << 10
)

// MistralOCR reads proposal documents through the Mistral OCR API. PDFs
// are sent as documents and images as images; pages come back as markdown.
type MistralOCR struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewMistralOCR creates a MistralOCR extractor. An empty model selects
// mistral-ocr-latest.
func NewMistralOCR(apiKey, model string) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	return &MistralOCR{
		apiKey:   apiKey,
		model:    model,
		endpoint: mistralOCREndpoint,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
}

type ocrRequest struct {
	Model    string      `json:"model"`
	Document ocrDocument `json:"document"`
}

// ocrDocument carries either DocumentURL (type document_url) or ImageURL
// (type image_url). Both accept data URLs.
type ocrDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

type ocrResponse struct {
	Pages []ocrPage `json:"pages"`
}

type ocrPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText OCRs the proposal's document. A document URL is passed
// through; a local file is inlined as a data URL.
func (m *MistralOCR) ExtractText(ctx context.Context, p model.Proposal) (string, error) {
	doc, err := ocrSource(p)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(ocrRequest{Model: m.model, Document: doc})
	if err != nil {
		return "", eris.Wrap(err, "extract: marshal ocr request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "extract: create ocr request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "extract: ocr proposal %s", p.ID)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxOCRErrorBody))
		return "", eris.Errorf("extract: ocr proposal %s: status %d: %s", p.ID, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", eris.Wrap(err, "extract: decode ocr response")
	}
	return joinPages(out.Pages), nil
}

// joinPages orders pages by index and drops blank ones.
func joinPages(pages []ocrPage) string {
	sort.SliceStable(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	parts := make([]string, 0, len(pages))
	for _, pg := range pages {
		if s := strings.TrimSpace(pg.Markdown); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "\n\n")
}

func ocrSource(p model.Proposal) (ocrDocument, error) {
	if p.DocumentURL != "" {
		if isImage(p.DocumentURL) {
			return ocrDocument{Type: "image_url", ImageURL: p.DocumentURL}, nil
		}
		return ocrDocument{Type: "document_url", DocumentURL: p.DocumentURL}, nil
	}
	if p.DocumentPath == "" {
		return ocrDocument{}, ErrNoDocument
	}

	data, err := os.ReadFile(p.DocumentPath)
	if err != nil {
		return ocrDocument{}, eris.Wrapf(err, "extract: read document %s", p.DocumentPath)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(p.DocumentPath)))
	if ct == "" {
		ct = "application/pdf"
	}
	dataURL := "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data)
	if strings.HasPrefix(ct, "image/") {
		return ocrDocument{Type: "image_url", ImageURL: dataURL}, nil
	}
	return ocrDocument{Type: "document_url", DocumentURL: dataURL}, nil
}

func isImage(url string) bool {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	switch strings.ToLower(filepath.Ext(url)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".gif":
		return true
	}
	return false
}
