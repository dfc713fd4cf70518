package domain

import (
	"sort"
	"strings"
	"time"
)

// Document is an ingested source file and its normalized text.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Text       string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
	ChunkCount int       `json:"chunk_count"`
}

// Span is a half-open byte range [Start, End) into a document's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

type Chunk struct {
	ID         string    `json:"id"`
	DocID      string    `json:"doc_id"`
	Position   int       `json:"position"`
	Span       Span      `json:"span"`
	TokenCount int       `json:"token_count"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// IndexEntry is the vector index record for one chunk.
type IndexEntry struct {
	ChunkID  string
	DocID    string
	Position int
	Vector   []float32
}

// DocumentFilter restricts a query to a set of document ids.
// A nil filter admits every document.
type DocumentFilter map[string]struct{}

// NewDocumentFilter builds a filter from ids. No ids means no restriction.
func NewDocumentFilter(ids ...string) DocumentFilter {
	if len(ids) == 0 {
		return nil
	}
	f := make(DocumentFilter, len(ids))
	for _, id := range ids {
		f[id] = struct{}{}
	}
	return f
}

// Allows reports whether the document passes the filter.
func (f DocumentFilter) Allows(docID string) bool {
	if f == nil {
		return true
	}
	_, ok := f[docID]
	return ok
}

// Key returns a stable string form of the filter, used for cache keys.
func (f DocumentFilter) Key() string {
	if f == nil {
		return "*"
	}
	ids := make([]string, 0, len(f))
	for id := range f {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// Query is a question with its embedding, the requested result count and an
// optional document filter.
type Query struct {
	Text   string
	Vector []float32
	K      int
	Filter DocumentFilter
}

// ScoredChunk pairs a chunk with its retrieval score.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// Citation attributes part of an answer to a source chunk.
type Citation struct {
	Marker   int    `json:"marker"`
	ChunkID  string `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}

type Answer struct {
	Question  string     `json:"question"`
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
}

// Reconstruct stitches the chunks of one document back into its text,
// dropping the overlapping prefix of every chunk after the first.
func Reconstruct(chunks []Chunk) string {
	ordered := make([]Chunk, len(chunks))
	copy(ordered, chunks)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	var b strings.Builder
	end := 0
	for i, c := range ordered {
		if i == 0 || c.Span.Start >= end {
			b.WriteString(c.Text)
		} else if c.Span.End > end {
			b.WriteString(c.Text[end-c.Span.Start:])
		}
		if c.Span.End > end {
			end = c.Span.End
		}
	}
	return b.String()
}
