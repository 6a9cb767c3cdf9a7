// Package extract converts uploaded file bytes into plain text, dispatching
// on MIME type. PDF and DOCX handling lives in their own files; text and
// markdown pass through as UTF-8.
package extract

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"
)

// MIME types accepted by the ingestion pipeline.
const (
	MIMEPDF      = "application/pdf"
	MIMEDOCX     = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText     = "text/plain"
	MIMEMarkdown = "text/markdown"
)

// Supported reports whether the given MIME type can be extracted.
func Supported(mimeType string) bool {
	switch mimeType {
	case MIMEPDF, MIMEDOCX, MIMEText, MIMEMarkdown:
		return true
	}
	return false
}

// CommandRunner executes an external command and returns its stdout. Injected
// so tests can stub out the pdftotext dependency.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Extractor turns raw upload bytes into plain text.
type Extractor struct {
	runner CommandRunner
}

func New() *Extractor {
	return &Extractor{runner: execRunner{}}
}

// NewWithRunner creates an extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner}
}

// Text extracts plain text from data according to its MIME type.
func (e *Extractor) Text(ctx context.Context, data []byte, mimeType string) (string, error) {
	switch mimeType {
	case MIMEText, MIMEMarkdown:
		if !utf8.Valid(data) {
			return "", fmt.Errorf("file is not valid UTF-8 text")
		}
		return string(data), nil
	case MIMEDOCX:
		return extractDocx(data)
	case MIMEPDF:
		return e.extractPDF(ctx, data)
	default:
		return "", fmt.Errorf("unsupported file type: %s", mimeType)
	}
}

// collapseBlank trims trailing space per line and drops runs of blank lines
// down to one, so extractor output chunks cleanly.
func collapseBlank(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
