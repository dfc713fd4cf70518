package usecase

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/keylock"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

// DocumentService keeps the repository and the vector index in step.
// Writes for one document id are serialized; different ids do not contend.
type DocumentService struct {
	repo  port.DocumentRepository
	index port.VectorIndex
	locks *keylock.Locker
	log   *slog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(repo port.DocumentRepository, index port.VectorIndex, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		repo:  repo,
		index: index,
		locks: keylock.New(),
		log:   logging.OrDiscard(logger),
	}
}

// Add commits a document and its embedded chunks. The repository is written
// first; if the index rejects the entries the repository write is undone.
func (s *DocumentService) Add(doc domain.Document, chunks []domain.Chunk) error {
	entries := make([]domain.IndexEntry, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return domain.NewError(domain.KindIndex, "add document", fmt.Errorf("chunk %d of %s has no embedding", c.Position, doc.Filename))
		}
		entries[i] = domain.IndexEntry{
			ChunkID:  c.ID,
			DocID:    doc.ID,
			Position: c.Position,
			Vector:   c.Embedding,
		}
	}
	doc.ChunkCount = len(chunks)

	unlock := s.locks.Lock(doc.ID)
	defer unlock()

	if err := s.repo.Save(doc, chunks); err != nil {
		return fmt.Errorf("failed to store document %s: %w", doc.Filename, err)
	}

	if err := s.index.Insert(doc.ID, entries); err != nil {
		if rbErr := s.repo.Delete(doc.ID); rbErr != nil {
			s.log.Error("rollback after index failure left a stale document",
				slog.String("doc_id", doc.ID), slog.Any("error", rbErr))
		}
		return err
	}

	s.log.Info("document committed",
		slog.String("doc_id", doc.ID),
		slog.String("filename", doc.Filename),
		slog.Int("chunks", len(chunks)))
	return nil
}

// Remove deletes a document from the repository and then from the index.
// Unknown ids yield an index error wrapping domain.ErrNotFound. Vectors left
// behind by an earlier failed removal are dropped.
func (s *DocumentService) Remove(id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.repo.Get(id); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to load document %s: %w", id, err)
		}
		if !s.index.Has(id) {
			return domain.NewError(domain.KindIndex, "delete document", err)
		}
		s.log.Warn("removing orphaned vectors", slog.String("doc_id", id))
	} else if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}

	if err := s.index.Delete(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.log.Error("document deleted but its vectors are still indexed",
			slog.String("doc_id", id), slog.Any("error", err))
		return err
	}

	s.log.Info("document removed", slog.String("doc_id", id))
	return nil
}

// Exists reports whether a document with id is committed: its record is in
// the repository and its vectors are in the index.
func (s *DocumentService) Exists(id string) (bool, error) {
	_, err := s.repo.Get(id)
	switch {
	case err == nil:
		return s.index.Has(id), nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Reconcile drops repository documents that have no indexed vectors and
// indexed vectors whose document record is gone. Either can be left behind
// when a process dies between the two writes of a commit or removal. It
// returns the number of documents dropped.
func (s *DocumentService) Reconcile() (int, error) {
	docs, err := s.repo.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}

	dropped := 0
	for _, doc := range docs {
		if s.index.Has(doc.ID) {
			continue
		}
		unlock := s.locks.Lock(doc.ID)
		err := s.repo.Delete(doc.ID)
		unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return dropped, fmt.Errorf("failed to drop unindexed document %s: %w", doc.ID, err)
		}
		s.log.Warn("dropped document without vectors",
			slog.String("doc_id", doc.ID), slog.String("filename", doc.Filename))
		dropped++
	}

	for _, id := range s.index.Documents() {
		_, err := s.repo.Get(id)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return dropped, fmt.Errorf("failed to load document %s: %w", id, err)
		}
		unlock := s.locks.Lock(id)
		err = s.index.Delete(id)
		unlock()
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return dropped, err
		}
		s.log.Warn("dropped orphaned vectors", slog.String("doc_id", id))
		dropped++
	}
	return dropped, nil
}

func (s *DocumentService) Get(id string) (domain.Document, error) {
	return s.repo.Get(id)
}

func (s *DocumentService) List() ([]domain.Document, error) {
	return s.repo.List()
}

func (s *DocumentService) Chunk(id string) (domain.Chunk, error) {
	return s.repo.GetChunk(id)
}

func (s *DocumentService) Chunks(docID string) ([]domain.Chunk, error) {
	return s.repo.GetChunksByDoc(docID)
}
