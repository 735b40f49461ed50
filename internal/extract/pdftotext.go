package extract

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proposal-eval/internal/model"
)

// PdfToText extracts text from local PDFs with the poppler pdftotext tool.
// Remote documents are not fetched.
type PdfToText struct {
	binPath string
}

// NewPdfToText creates a PdfToText extractor. An empty binPath resolves
// pdftotext from PATH.
func NewPdfToText(binPath string) *PdfToText {
	if binPath == "" {
		binPath = "pdftotext"
	}
	return &PdfToText{binPath: binPath}
}

// ExtractText writes the layout-preserving UTF-8 text of the document to
// stdout and returns it.
func (p *PdfToText) ExtractText(ctx context.Context, prop model.Proposal) (string, error) {
	if prop.DocumentPath == "" {
		return "", ErrNoDocument
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binPath, "-layout", "-enc", "UTF-8", "-nopgbrk", prop.DocumentPath, "-")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", eris.Wrapf(err, "extract: pdftotext %s: %s", prop.ID, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
