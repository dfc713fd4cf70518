package vectorindex

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

func entries(docID string, vectors ...[]float32) []domain.IndexEntry {
	out := make([]domain.IndexEntry, len(vectors))
	for i, v := range vectors {
		out[i] = domain.IndexEntry{ChunkID: fmt.Sprintf("%s-%d", docID, i), DocID: docID, Position: i, Vector: v}
	}
	return out
}

type failingPersister struct{}

func (failingPersister) LoadAll() (map[string][]domain.IndexEntry, error) { return nil, nil }
func (failingPersister) SaveEntries(string, []domain.IndexEntry) error    { return errors.New("disk full") }
func (failingPersister) DeleteEntries(string) error                      { return errors.New("disk full") }

func TestIndexQueryRanksByCosine(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, nil, nil)
	require.NoError(t, err)

	require.NoError(t, idx.Insert("a", entries("a", []float32{1, 0}, []float32{0, 1})))
	require.NoError(t, idx.Insert("b", entries("b", []float32{0.9, 0.1})))

	hits, err := idx.Query([]float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a-0", hits[0].ChunkID)
	assert.Equal(t, "b-0", hits[1].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, 3, idx.Count())
}

func TestIndexQueryEuclidean(t *testing.T) {
	idx, err := New(2, domain.MetricEuclidean, nil, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", entries("a", []float32{3, 4}, []float32{1, 1})))

	hits, err := idx.Query([]float32{0, 0}, 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a-1", hits[0].ChunkID)
	assert.InDelta(t, -5.0, hits[1].Score, 1e-6)
}

func TestIndexFilterAndDelete(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	require.NoError(t, idx.Insert("a", entries("a", []float32{1, 0})))
	require.NoError(t, idx.Insert("b", entries("b", []float32{1, 0})))
	gen := idx.Generation()

	hits, err := idx.Query([]float32{1, 0}, 10, domain.NewDocumentFilter("b"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].DocID)

	require.NoError(t, idx.Delete("b"))
	assert.Greater(t, idx.Generation(), gen)

	hits, err = idx.Query([]float32{1, 0}, 10, domain.NewDocumentFilter("b"))
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Equal(t, 1, idx.Count())

	err = idx.Delete("b")
	assert.True(t, domain.IsKind(err, domain.KindIndex))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexReinsertReplaces(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, nil, nil)
	require.NoError(t, err)

	require.NoError(t, idx.Insert("a", entries("a", []float32{1, 0}, []float32{0, 1})))
	require.NoError(t, idx.Insert("a", entries("a", []float32{1, 0}, []float32{0, 1})))
	assert.Equal(t, 2, idx.Count())
}

func TestIndexDimensionMismatch(t *testing.T) {
	idx, err := New(3, domain.MetricCosine, nil, nil)
	require.NoError(t, err)

	err = idx.Insert("a", entries("a", []float32{1, 0}))
	assert.True(t, domain.IsKind(err, domain.KindIndex))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, idx.Count())

	_, err = idx.Query([]float32{1}, 1, nil)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndexEmptyQuery(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, nil, nil)
	require.NoError(t, err)

	hits, err := idx.Query([]float32{1, 0}, 5, nil)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndexDocuments(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, idx.Documents())

	require.NoError(t, idx.Insert("b", entries("b", []float32{1, 0})))
	require.NoError(t, idx.Insert("a", entries("a", []float32{0, 1})))
	assert.Equal(t, []string{"a", "b"}, idx.Documents())

	require.NoError(t, idx.Delete("b"))
	assert.Equal(t, []string{"a"}, idx.Documents())
}

func TestIndexPersistFailureLeavesSnapshot(t *testing.T) {
	idx, err := New(2, domain.MetricCosine, failingPersister{}, nil)
	require.NoError(t, err)

	err = idx.Insert("a", entries("a", []float32{1, 0}))
	assert.True(t, domain.IsKind(err, domain.KindIndex))
	assert.Equal(t, 0, idx.Count())
	assert.False(t, idx.Has("a"))
}

func TestIndexNoPartialDocumentVisibility(t *testing.T) {
	const docs, perDoc = 20, 25
	idx, err := New(4, domain.MetricCosine, nil, nil)
	require.NoError(t, err)

	vectors := make([][]float32, perDoc)
	for i := range vectors {
		vectors[i] = []float32{1, float32(i), 0.5, 0.25}
	}

	var writers, readers sync.WaitGroup
	stop := make(chan struct{})
	violations := make(chan int, 1024)

	for r := 0; r < 4; r++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				hits, err := idx.Query([]float32{1, 1, 1, 1}, docs*perDoc, nil)
				if err != nil {
					continue
				}
				perDocCount := map[string]int{}
				for _, h := range hits {
					perDocCount[h.DocID]++
				}
				for _, n := range perDocCount {
					if n != perDoc {
						violations <- n
					}
				}
			}
		}()
	}

	for d := 0; d < docs; d++ {
		writers.Add(1)
		go func(d int) {
			defer writers.Done()
			docID := fmt.Sprintf("doc-%02d", d)
			assert.NoError(t, idx.Insert(docID, entries(docID, vectors...)))
		}(d)
	}
	writers.Wait()
	close(stop)
	readers.Wait()
	close(violations)

	for n := range violations {
		t.Errorf("observed partial document with %d of %d entries", n, perDoc)
	}
	assert.Equal(t, docs*perDoc, idx.Count())
}
