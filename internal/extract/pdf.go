package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// extractPDF shells out to pdftotext (poppler-utils), the same tool desktop
// search stacks lean on. The bytes go through a temp file because pdftotext
// wants a seekable input.
func (e *Extractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	dir, err := os.MkdirTemp("", "dealpilot-pdf-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "upload.pdf")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write temp pdf: %w", err)
	}

	// "-" sends the extracted text to stdout.
	out, err := e.runner.Run(ctx, "pdftotext", "-layout", "-nopgbrk", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}

	return collapseBlank(string(out)), nil
}
