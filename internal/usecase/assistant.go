package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/cache"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

// ErrEmptyQuestion is returned when a question has no text.
var ErrEmptyQuestion = errors.New("question is empty")

// Components are the adapters an Assistant is built from. Cache may be nil.
type Components struct {
	Repository port.DocumentRepository
	Index      port.VectorIndex
	Extractor  port.Extractor
	Chunker    port.Chunker
	Tokenizer  port.Tokenizer
	Embedder   port.Embedder
	LLM        port.LLM
	Cache      *cache.QueryCache
	Logger     *slog.Logger
}

// Settings are the tunables of the pipeline.
type Settings struct {
	TopK         int
	TokenBudget  int
	Workers      int
	MaxFileBytes int64
	Retrieve     RetrieveOptions
}

// Assistant is the question-answering pipeline over one document store and
// one vector index.
type Assistant struct {
	docs      *DocumentService
	ingest    *IngestUseCase
	retrieve  *RetrieveUseCase
	assemble  *AssembleUseCase
	answer    *AnswerUseCase
	tokenizer port.Tokenizer
	repo      port.DocumentRepository
	index     port.VectorIndex
	settings  Settings
	log       *slog.Logger
}

// NewAssistant wires the use cases together.
func NewAssistant(c Components, s Settings) (*Assistant, error) {
	if c.Repository == nil || c.Index == nil || c.Extractor == nil || c.Chunker == nil ||
		c.Tokenizer == nil || c.Embedder == nil || c.LLM == nil {
		return nil, domain.NewError(domain.KindConfiguration, "new assistant", errors.New("missing component"))
	}
	if c.Embedder.Dimension() != c.Index.Dimension() {
		return nil, domain.NewError(domain.KindConfiguration, "new assistant",
			fmt.Errorf("%w: embedder produces %d dimensions, index holds %d",
				domain.ErrDimensionMismatch, c.Embedder.Dimension(), c.Index.Dimension()))
	}
	if s.TopK <= 0 {
		s.TopK = 5
	}

	logger := logging.OrDiscard(c.Logger)
	docs := NewDocumentService(c.Repository, c.Index, logger)
	answer, err := NewAnswerUseCase(c.LLM, logger)
	if err != nil {
		return nil, err
	}

	return &Assistant{
		docs:      docs,
		ingest:    NewIngestUseCase(docs, c.Extractor, c.Chunker, c.Tokenizer, c.Embedder, s.MaxFileBytes, s.Workers, logger),
		retrieve:  NewRetrieveUseCase(c.Index, docs, c.Embedder, c.Cache, s.Retrieve, logger),
		assemble:  NewAssembleUseCase(docs, c.Tokenizer),
		answer:    answer,
		tokenizer: c.Tokenizer,
		repo:      c.Repository,
		index:     c.Index,
		settings:  s,
		log:       logger,
	}, nil
}

// Ingest adds one document and returns its id.
func (a *Assistant) Ingest(ctx context.Context, raw []byte, filename string) (string, error) {
	return a.ingest.Ingest(ctx, raw, filename)
}

// IngestFiles adds documents from disk concurrently.
func (a *Assistant) IngestFiles(ctx context.Context, paths []string, progress func(FileResult)) (*IngestResult, error) {
	return a.ingest.IngestFiles(ctx, paths, progress)
}

// Search retrieves the topK best chunks for question, optionally limited to docIDs.
func (a *Assistant) Search(ctx context.Context, question string, topK int, docIDs ...string) ([]domain.ScoredChunk, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	return a.retrieve.Search(ctx, question, a.k(topK), domain.NewDocumentFilter(docIDs...))
}

// Context retrieves and assembles the evidence for question. budget <= 0
// uses the configured token budget; the question's own tokens are reserved.
func (a *Assistant) Context(ctx context.Context, question string, topK, budget int, docIDs ...string) (domain.AssembledContext, error) {
	results, err := a.Search(ctx, question, topK, docIDs...)
	if err != nil {
		return domain.AssembledContext{}, err
	}
	if budget <= 0 {
		budget = a.settings.TokenBudget
	}
	budget -= a.tokenizer.CountTokens(question)
	if budget < 0 {
		budget = 0
	}
	return a.assemble.Assemble(results, budget)
}

// Prompt renders the model input Ask would send for question.
func (a *Assistant) Prompt(ctx context.Context, question string, topK int, docIDs ...string) (Prompt, error) {
	assembled, err := a.Context(ctx, question, topK, 0, docIDs...)
	if err != nil {
		return Prompt{}, err
	}
	return a.answer.RenderPrompt(question, assembled)
}

// Ask answers question from the indexed documents with citations. When
// nothing relevant is indexed the answer has no citations and no model call
// is made.
func (a *Assistant) Ask(ctx context.Context, question string, topK int, docIDs ...string) (domain.Answer, error) {
	assembled, err := a.Context(ctx, question, topK, 0, docIDs...)
	if err != nil {
		return domain.Answer{}, err
	}

	answer, err := a.answer.Generate(ctx, strings.TrimSpace(question), assembled)
	if err != nil {
		return domain.Answer{}, err
	}
	a.log.Info("answered question",
		slog.Int("context_tokens", assembled.UsedTokens),
		slog.Int("citations", len(answer.Citations)))
	return answer, nil
}

// ListDocuments returns document manifests, oldest first.
func (a *Assistant) ListDocuments() ([]domain.Document, error) {
	return a.docs.List()
}

// GetDocument returns one document including its text.
func (a *Assistant) GetDocument(id string) (domain.Document, error) {
	return a.docs.Get(id)
}

// DeleteDocument removes a document with its chunks and vectors.
func (a *Assistant) DeleteDocument(id string) error {
	return a.docs.Remove(id)
}

// Reconcile drops documents stranded without vectors and vectors whose
// document is gone. It returns the number of documents dropped.
func (a *Assistant) Reconcile() (int, error) {
	return a.docs.Reconcile()
}

// IndexedChunks returns the number of vectors in the index.
func (a *Assistant) IndexedChunks() int {
	return a.index.Count()
}

// Close releases the index and the repository.
func (a *Assistant) Close() error {
	return errors.Join(a.index.Close(), a.repo.Close())
}

func (a *Assistant) k(topK int) int {
	if topK <= 0 {
		return a.settings.TopK
	}
	return topK
}
