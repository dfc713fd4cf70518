package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/memstore"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/vectorindex"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

// rejectingIndex fails every Insert after the repository write succeeded.
type rejectingIndex struct {
	*vectorindex.Index
}

func (rejectingIndex) Insert(docID string, entries []domain.IndexEntry) error {
	return domain.NewError(domain.KindIndex, "insert", errors.New("disk full"))
}

// stickyStore refuses to delete documents.
type stickyStore struct {
	*memstore.MemoryStore
}

func (stickyStore) Delete(id string) error {
	return errors.New("database is locked")
}

func twoChunkDocument(id string) (domain.Document, []domain.Chunk) {
	text := "Attention weighs tokens. Heads run in parallel."
	doc := domain.Document{ID: id, Filename: id + ".txt", Text: text}
	return doc, []domain.Chunk{
		{ID: id + "-0", DocID: id, Position: 0, Span: domain.Span{Start: 0, End: 24}, Text: text[:24], Embedding: []float32{1, 0, 0, 0}},
		{ID: id + "-1", DocID: id, Position: 1, Span: domain.Span{Start: 24, End: len(text)}, Text: text[24:], Embedding: []float32{0, 1, 0, 0}},
	}
}

func TestDocumentService_AddRollsBackWhenIndexFails(t *testing.T) {
	repo := memstore.NewMemoryStore()
	index, err := vectorindex.New(4, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	docs := NewDocumentService(repo, rejectingIndex{index}, nil)

	doc, chunks := twoChunkDocument("d1")
	err = docs.Add(doc, chunks)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindIndex))

	listed, err := repo.List()
	require.NoError(t, err)
	assert.Empty(t, listed)
	stored, err := repo.GetChunksByDoc("d1")
	require.NoError(t, err)
	assert.Empty(t, stored)
	_, err = repo.GetChunk("d1-0")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, index.Count())
}

func TestIngest_IndexFailureReachesCaller(t *testing.T) {
	h := newHarness(t)
	docs := NewDocumentService(h.repo, rejectingIndex{h.index}, nil)
	h.assistant.ingest.docs = docs

	_, err := h.assistant.Ingest(context.Background(), []byte(attentionText), "attention.txt")
	assert.True(t, domain.IsKind(err, domain.KindIndex))

	listed, err := h.assistant.ListDocuments()
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestDocumentService_RemoveKeepsVectorsWhenRepositoryFails(t *testing.T) {
	repo := stickyStore{memstore.NewMemoryStore()}
	index, err := vectorindex.New(4, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	docs := NewDocumentService(repo, index, nil)

	doc, chunks := twoChunkDocument("d1")
	require.NoError(t, docs.Add(doc, chunks))

	require.Error(t, docs.Remove("d1"))

	exists, err := docs.Exists("d1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, 2, index.Count())
}

func TestDocumentService_RemoveDropsOrphanedVectors(t *testing.T) {
	repo := memstore.NewMemoryStore()
	index, err := vectorindex.New(4, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	docs := NewDocumentService(repo, index, nil)

	require.NoError(t, index.Insert("ghost", []domain.IndexEntry{
		{ChunkID: "ghost-0", DocID: "ghost", Vector: []float32{1, 0, 0, 0}},
	}))

	require.NoError(t, docs.Remove("ghost"))
	assert.False(t, index.Has("ghost"))
}

func TestIngest_RepairsDocumentWithoutVectors(t *testing.T) {
	h := newHarness(t)
	id := h.ingest(t, "attention.txt", attentionText)

	// Record committed, vectors lost.
	require.NoError(t, h.index.Delete(id))
	exists, err := h.assistant.docs.Exists(id)
	require.NoError(t, err)
	assert.False(t, exists)

	calls := h.embedder.Calls()
	again := h.ingest(t, "attention.txt", attentionText)
	assert.Equal(t, id, again)
	assert.Greater(t, h.embedder.Calls(), calls)
	assert.True(t, h.index.Has(id))

	results, err := h.assistant.Search(context.Background(), "multi-head attention", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestDocumentService_Reconcile(t *testing.T) {
	h := newHarness(t)
	stranded := h.ingest(t, "attention.txt", attentionText)
	kept := h.ingest(t, "gardening.txt", gardeningText)

	ghost := make([]float32, testDimension)
	ghost[0] = 1
	require.NoError(t, h.index.Delete(stranded))
	require.NoError(t, h.index.Insert("ghost", []domain.IndexEntry{
		{ChunkID: "ghost-0", DocID: "ghost", Vector: ghost},
	}))

	dropped, err := h.assistant.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	listed, err := h.assistant.ListDocuments()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, kept, listed[0].ID)
	assert.Equal(t, []string{kept}, h.index.Documents())

	dropped, err = h.assistant.Reconcile()
	require.NoError(t, err)
	assert.Equal(t, 0, dropped)
}
