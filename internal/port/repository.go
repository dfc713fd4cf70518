package port

import "github.com/justineyoo1/PDFResearchAssistant/internal/domain"

// DocumentRepository owns document and chunk records.
type DocumentRepository interface {
	// Save writes a document and all its chunks in one atomic unit.
	Save(doc domain.Document, chunks []domain.Chunk) error

	// Delete removes a document and its chunks. Unknown ids return domain.ErrNotFound.
	Delete(id string) error

	Get(id string) (domain.Document, error)
	List() ([]domain.Document, error)
	GetChunk(id string) (domain.Chunk, error)
	GetChunksByDoc(docID string) ([]domain.Chunk, error)

	Close() error
}
