package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
	"github.com/justineyoo1/PDFResearchAssistant/internal/resilience"
)

// ResilientEmbedder splits input into batches and runs each batch through
// an Executor, so transient service failures are retried per batch.
type ResilientEmbedder struct {
	inner     port.Embedder
	exec      *resilience.Executor
	batchSize int
	log       *slog.Logger
}

func NewResilientEmbedder(inner port.Embedder, exec *resilience.Executor, batchSize int, logger *slog.Logger) *ResilientEmbedder {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ResilientEmbedder{inner: inner, exec: exec, batchSize: batchSize, log: logging.OrDiscard(logger)}
}

func (e *ResilientEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var vectors [][]float32
		err := e.exec.Do(ctx, domain.KindEmbedding, "embed", func(ctx context.Context) error {
			var err error
			vectors, err = e.inner.Embed(ctx, batch)
			return err
		})
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(batch) {
			return nil, domain.NewError(domain.KindEmbedding, "embed",
				fmt.Errorf("service returned %d vectors for %d inputs", len(vectors), len(batch)))
		}
		out = append(out, vectors...)
		e.log.Debug("embedded batch", slog.Int("from", start), slog.Int("to", end), slog.String("model", e.inner.ModelName()))
	}
	return out, nil
}

func (e *ResilientEmbedder) Dimension() int {
	return e.inner.Dimension()
}

func (e *ResilientEmbedder) ModelName() string {
	return e.inner.ModelName()
}
