package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

// IngestUseCase turns raw documents into committed, searchable chunks.
type IngestUseCase struct {
	docs      *DocumentService
	extractor port.Extractor
	chunker   port.Chunker
	tokenizer port.Tokenizer
	embedder  port.Embedder
	maxBytes  int64
	workers   int
	now       func() time.Time
	log       *slog.Logger
}

// NewIngestUseCase creates a new ingest use case. maxBytes <= 0 disables
// the upload size check.
func NewIngestUseCase(
	docs *DocumentService,
	extractor port.Extractor,
	chunker port.Chunker,
	tokenizer port.Tokenizer,
	embedder port.Embedder,
	maxBytes int64,
	workers int,
	logger *slog.Logger,
) *IngestUseCase {
	if workers < 1 {
		workers = 1
	}
	return &IngestUseCase{
		docs:      docs,
		extractor: extractor,
		chunker:   chunker,
		tokenizer: tokenizer,
		embedder:  embedder,
		maxBytes:  maxBytes,
		workers:   workers,
		now:       time.Now,
		log:       logging.OrDiscard(logger),
	}
}

// FileResult is the outcome of ingesting one file.
type FileResult struct {
	Path     string `json:"path"`
	DocID    string `json:"doc_id,omitempty"`
	Existing bool   `json:"existing,omitempty"`
	Err      error  `json:"-"`
}

// IngestResult summarizes a multi-file ingestion.
type IngestResult struct {
	Files    []FileResult
	Ingested int
	Existing int
	Failed   int
}

// Ingest extracts, chunks, embeds and commits one document and returns its
// id. Nothing is committed unless every chunk was embedded. Ingesting a
// document that is already present returns the existing id.
func (u *IngestUseCase) Ingest(ctx context.Context, raw []byte, filename string) (string, error) {
	id, _, err := u.ingest(ctx, raw, filename)
	return id, err
}

func (u *IngestUseCase) ingest(ctx context.Context, raw []byte, filename string) (string, bool, error) {
	op := "ingest " + filename
	if u.maxBytes > 0 && int64(len(raw)) > u.maxBytes {
		return "", false, domain.NewError(domain.KindExtraction, op,
			fmt.Errorf("%w: %d bytes, limit %d", domain.ErrFileTooLarge, len(raw), u.maxBytes))
	}

	text, err := u.extractor.Extract(ctx, raw, filename)
	if err != nil {
		return "", false, err
	}
	if text == "" {
		return "", false, domain.NewError(domain.KindExtraction, op, domain.ErrEmptyDocument)
	}

	docID := domain.DocumentID(filename, text)
	exists, err := u.docs.Exists(docID)
	if err != nil {
		return "", false, err
	}
	if exists {
		u.log.Info("document already ingested", slog.String("doc_id", docID), slog.String("filename", filename))
		return docID, true, nil
	}

	spans := u.chunker.Chunk(text)
	chunks := make([]domain.Chunk, len(spans))
	texts := make([]string, len(spans))
	for i, span := range spans {
		texts[i] = text[span.Start:span.End]
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(docID, i),
			DocID:      docID,
			Position:   i,
			Span:       span,
			TokenCount: u.tokenizer.CountTokens(texts[i]),
			Text:       texts[i],
		}
	}

	start := time.Now()
	vectors, err := u.embedder.Embed(ctx, texts)
	if err != nil {
		return "", false, err
	}
	if len(vectors) != len(chunks) {
		return "", false, domain.NewError(domain.KindEmbedding, op,
			fmt.Errorf("got %d embeddings for %d chunks", len(vectors), len(chunks)))
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	u.log.Debug("embedded chunks",
		slog.String("filename", filename),
		slog.Int("chunks", len(chunks)),
		slog.Duration("took", time.Since(start)))

	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	doc := domain.Document{
		ID:         docID,
		Filename:   filename,
		Text:       text,
		CreatedAt:  u.now().UTC(),
		ChunkCount: len(chunks),
	}
	if err := u.docs.Add(doc, chunks); err != nil {
		return "", false, err
	}
	return docID, false, nil
}

// IngestFiles ingests paths concurrently, bounded by the worker count.
// A failing file is recorded in its FileResult and does not stop the others.
// progress, if set, is called once per finished file.
func (u *IngestUseCase) IngestFiles(ctx context.Context, paths []string, progress func(FileResult)) (*IngestResult, error) {
	result := &IngestResult{Files: make([]FileResult, len(paths))}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.workers)

	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			fr := FileResult{Path: path}
			fr.DocID, fr.Existing, fr.Err = u.ingestFile(gctx, path)
			if fr.Err != nil {
				u.log.Warn("failed to ingest file", slog.String("path", path), slog.Any("error", fr.Err))
			}

			mu.Lock()
			result.Files[i] = fr
			switch {
			case fr.Err != nil:
				result.Failed++
			case fr.Existing:
				result.Existing++
			default:
				result.Ingested++
			}
			mu.Unlock()

			if progress != nil {
				progress(fr)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}
	return result, ctx.Err()
}

func (u *IngestUseCase) ingestFile(ctx context.Context, path string) (string, bool, error) {
	filename := filepath.Base(path)
	if u.maxBytes > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return "", false, domain.NewError(domain.KindExtraction, "ingest "+filename, err)
		}
		if info.Size() > u.maxBytes {
			return "", false, domain.NewError(domain.KindExtraction, "ingest "+filename,
				fmt.Errorf("%w: %d bytes, limit %d", domain.ErrFileTooLarge, info.Size(), u.maxBytes))
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false, domain.NewError(domain.KindExtraction, "ingest "+filename, err)
	}
	return u.ingest(ctx, raw, filename)
}
