// Package pdf extracts plain text from PDF manuals.
package pdf

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/kailas-cloud/manualqa/internal/domain"
)

// Extractor reads a whole PDF from disk and returns its text layer.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the concatenated plain text of every page. A missing,
// unreadable or malformed file, or one with no text layer, yields
// domain.ErrDocumentRead.
func (e *Extractor) Extract(ctx context.Context, path string) (text string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// The parser panics on some malformed object streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("parse %s: %v: %w", path, r, domain.ErrDocumentRead)
		}
	}()

	f, r, err := pdf.Open(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("open %s: %w: %w", path, domain.ErrDocumentRead, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text of %s: %w: %w", path, domain.ErrDocumentRead, err)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", fmt.Errorf("read text of %s: %w: %w", path, domain.ErrDocumentRead, err)
	}

	text = sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%s has no text layer: %w", path, domain.ErrDocumentRead)
	}

	e.logger.Debug("Extracted document text",
		zap.String("path", path),
		zap.Int("pages", r.NumPage()),
		zap.Int("runes", len([]rune(text))),
	)

	return text, nil
}
