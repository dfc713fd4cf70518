package usecase

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/justineyoo1/PDFResearchAssistant/internal/adapter/cache"
	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

// RetrieveOptions tunes candidate fetching and post-processing.
type RetrieveOptions struct {
	CandidateMultiplier int
	DedupEpsilon        float64
	MinScore            float64 // 0 disables the threshold
}

// RetrieveUseCase ranks indexed chunks against a query vector.
type RetrieveUseCase struct {
	index    port.VectorIndex
	docs     *DocumentService
	embedder port.Embedder
	cache    *cache.QueryCache
	opts     RetrieveOptions
	log      *slog.Logger
}

// NewRetrieveUseCase creates a new retrieve use case. queryCache may be nil.
func NewRetrieveUseCase(
	index port.VectorIndex,
	docs *DocumentService,
	embedder port.Embedder,
	queryCache *cache.QueryCache,
	opts RetrieveOptions,
	logger *slog.Logger,
) *RetrieveUseCase {
	if opts.CandidateMultiplier < 1 {
		opts.CandidateMultiplier = 1
	}
	return &RetrieveUseCase{
		index:    index,
		docs:     docs,
		embedder: embedder,
		cache:    queryCache,
		opts:     opts,
		log:      logging.OrDiscard(logger),
	}
}

// Search embeds the question and retrieves the k best chunks. Results are
// cached per question, k and filter until the index changes.
func (u *RetrieveUseCase) Search(ctx context.Context, question string, k int, filter domain.DocumentFilter) ([]domain.ScoredChunk, error) {
	generation := u.index.Generation()
	key := cache.Key(question, k, filter)
	if u.cache != nil {
		if results, ok := u.cache.Get(key, generation); ok {
			u.log.Debug("retrieval cache hit", slog.Int("results", len(results)))
			return results, nil
		}
	}

	if u.index.Count() == 0 {
		return nil, nil
	}

	vectors, err := u.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, domain.NewError(domain.KindEmbedding, "embed question", errors.New("embedder returned no vector"))
	}

	results, err := u.Retrieve(domain.Query{Text: question, Vector: vectors[0], K: k, Filter: filter})
	if err != nil {
		return nil, err
	}

	if u.cache != nil {
		u.cache.Put(key, generation, results)
	}
	return results, nil
}

// Retrieve fetches k*multiplier candidates, collapses near-duplicate
// neighbors, truncates to k and normalizes scores to [0, 1].
func (u *RetrieveUseCase) Retrieve(q domain.Query) ([]domain.ScoredChunk, error) {
	k := q.K
	if k <= 0 {
		return nil, nil
	}

	hits, err := u.index.Query(q.Vector, k*u.opts.CandidateMultiplier, q.Filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	kept := u.collapse(hits)
	if len(kept) > k {
		kept = kept[:k]
	}

	metric := u.index.Metric()
	results := make([]domain.ScoredChunk, 0, len(kept))
	for _, hit := range kept {
		chunk, err := u.docs.Chunk(hit.ChunkID)
		if err != nil {
			// Deleted between the index scan and the lookup.
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		score := metric.Normalize(hit.Score)
		if u.opts.MinScore > 0 && score < u.opts.MinScore {
			continue
		}
		results = append(results, domain.ScoredChunk{Chunk: chunk, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results, nil
}

// collapse drops a hit when a better-ranked kept hit is its direct neighbor
// in the same document with a nearly identical raw score. hits must be
// sorted best first.
func (u *RetrieveUseCase) collapse(hits []port.VectorHit) []port.VectorHit {
	kept := make([]port.VectorHit, 0, len(hits))
	for _, h := range hits {
		duplicate := false
		for _, k := range kept {
			if k.DocID == h.DocID &&
				absInt(k.Position-h.Position) == 1 &&
				math.Abs(k.Score-h.Score) < u.opts.DedupEpsilon {
				duplicate = true
				break
			}
		}
		if !duplicate {
			kept = append(kept, h)
		}
	}
	return kept
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
