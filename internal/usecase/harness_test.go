package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/analyzer"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/cache"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/chunker"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/embedding"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/extractor"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/llm"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/memstore"
	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/vectorindex"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
)

const testDimension = 64

const attentionText = `The Transformer architecture replaces recurrence with attention. Every token attends to every other token in the sequence, and the attention weights are computed from queries and keys.

Multi-head attention runs several attention functions in parallel. Each head projects queries, keys and values into a smaller subspace, and the outputs are concatenated.

Positional encodings inject word order into the model because attention itself is permutation invariant. Sinusoidal encodings let the model generalize to longer sequences.`

const gardeningText = `Tomatoes grow best in loose soil rich in compost. Water the plants deeply twice a week and keep the leaves dry to prevent blight.

Pruning the suckers that form between the stem and branches directs energy into fruit. Stake or cage the plants early in the season.

Harvest tomatoes when they are fully colored but still firm. Store them at room temperature to keep their flavor.`

// flakyEmbedder fails its first failures calls with a transient error.
type flakyEmbedder struct {
	inner     port.Embedder
	mu        sync.Mutex
	calls     int
	failures  int
	permanent error
}

func (e *flakyEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	failures, permanent := e.failures, e.permanent
	e.mu.Unlock()

	if permanent != nil {
		return nil, permanent
	}
	if n <= failures {
		return nil, domain.NewTransientError(domain.KindEmbedding, "embed", errors.New("503 service unavailable"))
	}
	return e.inner.Embed(ctx, texts)
}

func (e *flakyEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *flakyEmbedder) ModelName() string { return e.inner.ModelName() }

func (e *flakyEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *flakyEmbedder) set(failures int, permanent error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = 0
	e.failures = failures
	e.permanent = permanent
}

// scriptedLLM replies with reply, or echoes the context when reply is empty.
type scriptedLLM struct {
	mu      sync.Mutex
	calls   int
	reply   string
	err     error
	prompts []string
}

func (l *scriptedLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.mu.Lock()
	l.calls++
	l.prompts = append(l.prompts, userPrompt)
	reply, err := l.reply, l.err
	l.mu.Unlock()

	if err != nil {
		return "", err
	}
	if reply == "" {
		return llm.NewEchoLLM(2).Generate(ctx, systemPrompt, userPrompt)
	}
	return reply, nil
}

func (l *scriptedLLM) ModelName() string { return "scripted" }

func (l *scriptedLLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type harness struct {
	assistant *Assistant
	repo      *memstore.MemoryStore
	index     *vectorindex.Index
	chunker   *chunker.WindowChunker
	embedder  *flakyEmbedder
	llm       *scriptedLLM
}

func testPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
		CallTimeout:     time.Second,
		MaxConcurrency:  4,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	repo := memstore.NewMemoryStore()
	index, err := vectorindex.New(testDimension, domain.MetricCosine, nil, nil)
	require.NoError(t, err)
	ch, err := chunker.NewWindowChunker(200, 40, chunker.UnitChar, 20)
	require.NoError(t, err)

	exec := resilience.NewExecutor(testPolicy(), nil)
	emb := &flakyEmbedder{inner: embedding.NewHashEmbedder(testDimension)}
	model := &scriptedLLM{}

	a, err := NewAssistant(Components{
		Repository: repo,
		Index:      index,
		Extractor:  extractor.NewPlainExtractor(),
		Chunker:    ch,
		Tokenizer:  analyzer.NewTokenizer(),
		Embedder:   embedding.NewResilientEmbedder(emb, exec, 100, nil),
		LLM:        llm.NewResilientLLM(model, exec),
		Cache:      cache.NewQueryCache(16, time.Minute),
	}, Settings{
		TopK:         3,
		TokenBudget:  500,
		Workers:      2,
		MaxFileBytes: 1 << 20,
		Retrieve: RetrieveOptions{
			CandidateMultiplier: 2,
			DedupEpsilon:        0.01,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	return &harness{
		assistant: a,
		repo:      repo,
		index:     index,
		chunker:   ch,
		embedder:  emb,
		llm:       model,
	}
}

func (h *harness) ingest(t *testing.T, filename, text string) string {
	t.Helper()
	id, err := h.assistant.Ingest(context.Background(), []byte(text), filename)
	require.NoError(t, err)
	return id
}

func (h *harness) expectedChunks(text string) int {
	return len(h.chunker.Chunk(extractor.Normalize(text)))
}

func documentText(topic string, paragraphs int) string {
	var b strings.Builder
	for i := 0; i < paragraphs; i++ {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("Notes on ")
		b.WriteString(topic)
		b.WriteString(": the ")
		b.WriteString(topic)
		b.WriteString(" section discusses measurements, observations and follow-up questions in detail.")
	}
	return b.String()
}
