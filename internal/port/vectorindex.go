package port

import "github.com/justineyoo1/PDFResearchAssistant/internal/domain"

// VectorIndex stores chunk vectors and answers nearest-neighbor queries.
type VectorIndex interface {
	// Insert adds all entries of one document atomically.
	Insert(docID string, entries []domain.IndexEntry) error

	// Query returns up to k entries ranked by raw score, highest first.
	Query(vector []float32, k int, filter domain.DocumentFilter) ([]VectorHit, error)

	// Delete removes every entry of a document.
	Delete(docID string) error

	// Has reports whether any entry of docID is indexed.
	Has(docID string) bool

	// Documents returns the ids of all indexed documents, sorted.
	Documents() []string

	Count() int
	Dimension() int
	Metric() domain.Metric

	// Generation increases on every committed change.
	Generation() uint64

	Close() error
}

// VectorHit is a raw index match. Score is higher-is-better in the index metric.
type VectorHit struct {
	ChunkID  string
	DocID    string
	Position int
	Score    float64
}

// VectorPersister durably stores index entries.
type VectorPersister interface {
	LoadAll() (map[string][]domain.IndexEntry, error)
	SaveEntries(docID string, entries []domain.IndexEntry) error
	DeleteEntries(docID string) error
}
