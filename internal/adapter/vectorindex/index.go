// Package vectorindex is an exact nearest-neighbor index over chunk embeddings.
//
// Readers search an immutable snapshot published through an atomic pointer.
// Writers build a new snapshot and swap it in, so a query sees either none or
// all of a document's entries.
package vectorindex

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync/atomic"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
	"github.com/justineyoo1/PDFResearchAssistant/internal/keylock"
	"github.com/justineyoo1/PDFResearchAssistant/internal/logging"
	"github.com/justineyoo1/PDFResearchAssistant/internal/port"
)

type record struct {
	chunkID  string
	position int
	vector   []float32
	norm     float64
}

type snapshot struct {
	docs       map[string][]record
	count      int
	generation uint64
}

func (s *snapshot) with(docID string, recs []record) *snapshot {
	docs := make(map[string][]record, len(s.docs)+1)
	count := s.count
	for id, r := range s.docs {
		docs[id] = r
	}
	count -= len(docs[docID])
	docs[docID] = recs
	count += len(recs)
	return &snapshot{docs: docs, count: count, generation: s.generation + 1}
}

func (s *snapshot) without(docID string) *snapshot {
	docs := make(map[string][]record, len(s.docs))
	for id, r := range s.docs {
		if id != docID {
			docs[id] = r
		}
	}
	return &snapshot{docs: docs, count: s.count - len(s.docs[docID]), generation: s.generation + 1}
}

// Index implements port.VectorIndex.
type Index struct {
	dimension int
	metric    domain.Metric
	persister port.VectorPersister
	current   atomic.Pointer[snapshot]
	locks     *keylock.Locker
	log       *slog.Logger
}

// New creates an index and loads any entries already held by persister.
// persister may be nil for a purely in-memory index.
func New(dimension int, metric domain.Metric, persister port.VectorPersister, logger *slog.Logger) (*Index, error) {
	if dimension <= 0 {
		return nil, domain.NewError(domain.KindIndex, "new index", fmt.Errorf("dimension must be positive, got %d", dimension))
	}
	if metric == "" {
		metric = domain.MetricCosine
	}
	idx := &Index{
		dimension: dimension,
		metric:    metric,
		persister: persister,
		locks:     keylock.New(),
		log:       logging.OrDiscard(logger),
	}

	snap := &snapshot{docs: make(map[string][]record)}
	if persister != nil {
		stored, err := persister.LoadAll()
		if err != nil {
			return nil, domain.NewError(domain.KindIndex, "load vectors", err)
		}
		for docID, entries := range stored {
			recs, err := idx.toRecords(entries)
			if err != nil {
				return nil, domain.NewError(domain.KindIndex, "load vectors", err)
			}
			snap.docs[docID] = recs
			snap.count += len(recs)
		}
		idx.log.Debug("loaded vector index", slog.Int("documents", len(snap.docs)), slog.Int("entries", snap.count))
	}
	idx.current.Store(snap)

	return idx, nil
}

func (idx *Index) toRecords(entries []domain.IndexEntry) ([]record, error) {
	recs := make([]record, len(entries))
	for i, e := range entries {
		if len(e.Vector) != idx.dimension {
			return nil, fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.ChunkID, len(e.Vector), idx.dimension)
		}
		vec := make([]float32, len(e.Vector))
		copy(vec, e.Vector)
		recs[i] = record{
			chunkID:  e.ChunkID,
			position: e.Position,
			vector:   vec,
			norm:     magnitude(vec),
		}
	}
	return recs, nil
}

// Insert publishes all entries of docID at once, replacing any previous set.
func (idx *Index) Insert(docID string, entries []domain.IndexEntry) error {
	recs, err := idx.toRecords(entries)
	if err != nil {
		return domain.NewError(domain.KindIndex, "insert", err)
	}

	unlock := idx.locks.Lock(docID)
	defer unlock()

	if idx.persister != nil {
		if err := idx.persister.SaveEntries(docID, entries); err != nil {
			return domain.NewError(domain.KindIndex, "insert", err)
		}
	}

	idx.publish(func(s *snapshot) *snapshot { return s.with(docID, recs) })
	idx.log.Debug("indexed document", slog.String("doc_id", docID), slog.Int("entries", len(recs)))
	return nil
}

// Delete removes every entry of docID.
func (idx *Index) Delete(docID string) error {
	unlock := idx.locks.Lock(docID)
	defer unlock()

	if _, ok := idx.current.Load().docs[docID]; !ok {
		return domain.NewError(domain.KindIndex, "delete", fmt.Errorf("document %s: %w", docID, domain.ErrNotFound))
	}

	if idx.persister != nil {
		if err := idx.persister.DeleteEntries(docID); err != nil {
			return domain.NewError(domain.KindIndex, "delete", err)
		}
	}

	idx.publish(func(s *snapshot) *snapshot { return s.without(docID) })
	idx.log.Debug("removed document from index", slog.String("doc_id", docID))
	return nil
}

// publish swaps in a snapshot derived from the latest one, retrying on contention.
func (idx *Index) publish(next func(*snapshot) *snapshot) {
	for {
		old := idx.current.Load()
		if idx.current.CompareAndSwap(old, next(old)) {
			return
		}
	}
}

// Query scans every entry admitted by filter and returns the k best.
func (idx *Index) Query(vector []float32, k int, filter domain.DocumentFilter) ([]port.VectorHit, error) {
	if len(vector) != idx.dimension {
		return nil, domain.NewError(domain.KindIndex, "query",
			fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(vector), idx.dimension))
	}
	if k <= 0 {
		return nil, nil
	}

	snap := idx.current.Load()
	if snap.count == 0 {
		return nil, nil
	}

	qnorm := magnitude(vector)
	hits := make([]port.VectorHit, 0, snap.count)
	for docID, recs := range snap.docs {
		if !filter.Allows(docID) {
			continue
		}
		for _, r := range recs {
			hits = append(hits, port.VectorHit{
				ChunkID:  r.chunkID,
				DocID:    docID,
				Position: r.position,
				Score:    idx.score(vector, qnorm, r),
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].DocID != hits[j].DocID {
			return hits[i].DocID < hits[j].DocID
		}
		return hits[i].Position < hits[j].Position
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (idx *Index) score(q []float32, qnorm float64, r record) float64 {
	if idx.metric == domain.MetricEuclidean {
		var sum float64
		for i := range q {
			d := float64(q[i]) - float64(r.vector[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	}

	if qnorm == 0 || r.norm == 0 {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(r.vector[i])
	}
	return dot / (qnorm * r.norm)
}

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Has reports whether any entry of docID is indexed.
func (idx *Index) Has(docID string) bool {
	_, ok := idx.current.Load().docs[docID]
	return ok
}

// Documents returns the indexed document ids in sorted order.
func (idx *Index) Documents() []string {
	docs := idx.current.Load().docs
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of indexed entries.
func (idx *Index) Count() int {
	return idx.current.Load().count
}

func (idx *Index) Dimension() int {
	return idx.dimension
}

func (idx *Index) Metric() domain.Metric {
	return idx.metric
}

// Generation increases on every committed insert or delete.
func (idx *Index) Generation() uint64 {
	return idx.current.Load().generation
}

func (idx *Index) Close() error {
	return nil
}
