package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

var (
	bucketVectors    = []byte("vectors")
	bucketDocVectors = []byte("doc_vectors")
)

// BoltVectorPersister stores index entries in bbolt so the in-memory
// vector index can be rebuilt at startup.
//
// A persister obtained from BoltStore.Vectors only loads: the store's Save
// and Delete already write the vectors in the document's own transaction.
type BoltVectorPersister struct {
	db       *bbolt.DB
	loadOnly bool
}

type storedVector struct {
	DocID    string    `json:"d"`
	Position int       `json:"p"`
	Vector   []float32 `json:"v"`
}

// NewBoltVectorPersister creates the vector buckets in db if needed.
func NewBoltVectorPersister(db *bbolt.DB) (*BoltVectorPersister, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketDocVectors} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vector buckets: %w", err)
	}
	return &BoltVectorPersister{db: db}, nil
}

// LoadAll returns every stored entry grouped by document, in position order.
func (p *BoltVectorPersister) LoadAll() (map[string][]domain.IndexEntry, error) {
	out := make(map[string][]domain.IndexEntry)
	err := p.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("decode vector %s: %w", k, err)
			}
			out[stored.DocID] = append(out[stored.DocID], domain.IndexEntry{
				ChunkID:  string(k),
				DocID:    stored.DocID,
				Position: stored.Position,
				Vector:   stored.Vector,
			})
			return nil
		})
	})
	for _, entries := range out {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Position < entries[j].Position })
	}
	return out, err
}

// SaveEntries replaces the stored entries of docID in one transaction.
func (p *BoltVectorPersister) SaveEntries(docID string, entries []domain.IndexEntry) error {
	if p.loadOnly {
		return nil
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteVectors(tx, docID); err != nil {
			return err
		}
		return putVectors(tx, docID, entries)
	})
}

// DeleteEntries removes every stored entry of docID.
func (p *BoltVectorPersister) DeleteEntries(docID string) error {
	if p.loadOnly {
		return nil
	}
	return p.db.Update(func(tx *bbolt.Tx) error {
		return deleteVectors(tx, docID)
	})
}

func putVectors(tx *bbolt.Tx, docID string, entries []domain.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	b := tx.Bucket(bucketVectors)
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		data, err := json.Marshal(storedVector{DocID: docID, Position: e.Position, Vector: e.Vector})
		if err != nil {
			return err
		}
		if err := b.Put([]byte(e.ChunkID), data); err != nil {
			return err
		}
		ids = append(ids, e.ChunkID)
	}

	idsData, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketDocVectors).Put([]byte(docID), idsData)
}

func deleteVectors(tx *bbolt.Tx, docID string) error {
	docVectors := tx.Bucket(bucketDocVectors)
	data := docVectors.Get([]byte(docID))
	if data == nil {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	b := tx.Bucket(bucketVectors)
	for _, id := range ids {
		if err := b.Delete([]byte(id)); err != nil {
			return err
		}
	}
	return docVectors.Delete([]byte(docID))
}
