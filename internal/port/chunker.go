package port

import "github.com/justineyoo1/PDFResearchAssistant/internal/domain"

// Chunker splits normalized document text into overlapping spans.
type Chunker interface {
	Chunk(text string) []domain.Span
}
