// Package extractor turns uploaded bytes into normalized document text.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// PlainExtractor accepts UTF-8 text documents.
type PlainExtractor struct{}

func NewPlainExtractor() *PlainExtractor {
	return &PlainExtractor{}
}

func (e *PlainExtractor) Extract(ctx context.Context, raw []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if bytes.HasPrefix(raw, []byte("%PDF-")) {
		return "", domain.NewError(domain.KindExtraction, "extract "+filename,
			errors.New("binary PDF input needs the http extraction provider"))
	}
	if !utf8.Valid(raw) || bytes.IndexByte(raw, 0) >= 0 {
		return "", domain.NewError(domain.KindExtraction, "extract "+filename,
			errors.New("input is not valid UTF-8 text"))
	}

	text := Normalize(string(raw))
	if text == "" {
		return "", domain.NewError(domain.KindExtraction, "extract "+filename, domain.ErrEmptyDocument)
	}
	return text, nil
}
