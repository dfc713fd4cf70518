package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
)

func fastExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Millisecond,
		CallTimeout:     time.Second,
		MaxConcurrency:  2,
	}, nil)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(128)
	vecs, err := e.Embed(context.Background(), []string{
		"transformer attention heads",
		"attention heads in the transformer",
		"photosynthesis in green plants",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 128)

	again, err := e.Embed(context.Background(), []string{"transformer attention heads"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0])

	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[0], vecs[2]))
	assert.InDelta(t, 1.0, cosine(vecs[0], vecs[0]), 1e-5)
}

type flakyEmbedder struct {
	failures int32
	calls    int32
}

func (f *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failures {
		return nil, domain.NewTransientError(domain.KindEmbedding, "embed", errors.New("503"))
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *flakyEmbedder) Dimension() int    { return 2 }
func (f *flakyEmbedder) ModelName() string { return "flaky" }

func TestResilientEmbedderRetriesAndBatches(t *testing.T) {
	inner := &flakyEmbedder{failures: 2}
	e := NewResilientEmbedder(inner, fastExecutor(), 2, nil)

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c", "d", "e"})
	require.NoError(t, err)
	assert.Len(t, vecs, 5)
	assert.Equal(t, int32(5), atomic.LoadInt32(&inner.calls), "two failures then three batches")
}

func TestResilientEmbedderGivesUp(t *testing.T) {
	inner := &flakyEmbedder{failures: 10}
	e := NewResilientEmbedder(inner, fastExecutor(), 10, nil)

	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindEmbedding))
	assert.Equal(t, int32(3), atomic.LoadInt32(&inner.calls))
}

func TestOpenAIEmbedder(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)

		resp := embeddingResponse{}
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, embeddingData{Index: i, Embedding: []float32{float32(i), 0, 1}})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	t.Setenv("ASSISTANT_TEST_EMBED_KEY", "secret")
	inner, err := NewOpenAICompatibleEmbedder("ASSISTANT_TEST_EMBED_KEY", "test-model", srv.URL, 3)
	require.NoError(t, err)
	e := NewResilientEmbedder(inner, fastExecutor(), 100, nil)

	vecs, err := e.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 0, 1}, vecs[1])
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, 3, e.Dimension())
}

func TestOpenAIEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{Data: []embeddingData{{Index: 0, Embedding: []float32{1}}}})
	}))
	defer srv.Close()

	inner, err := NewOllamaEmbedder("nomic-embed-text", srv.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, 768, inner.Dimension())

	_, err = inner.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.False(t, domain.IsTransient(err))
}

func TestOpenAIEmbedderMissingKey(t *testing.T) {
	_, err := NewOpenAIEmbedder("ASSISTANT_TEST_EMBED_KEY_UNSET", "text-embedding-ada-002", 0)
	assert.True(t, domain.IsKind(err, domain.KindConfiguration))
}
