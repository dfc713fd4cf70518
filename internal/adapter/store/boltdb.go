package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

var (
	bucketDocs      = []byte("docs")
	bucketDocText   = []byte("doc_text")
	bucketChunks    = []byte("chunks")
	bucketBlobs     = []byte("blobs")
	bucketDocChunks = []byte("doc_chunks")
	bucketStats     = []byte("stats")
)

// BoltStore is the bbolt-backed document repository. Every Save and Delete
// runs in a single read-write transaction.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		buckets := [][]byte{bucketDocs, bucketDocText, bucketChunks, bucketBlobs, bucketDocChunks, bucketStats, bucketVectors, bucketDocVectors}
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

// Vectors returns a persister over this store's vector buckets. It only
// loads; Save and Delete keep the vectors in step with the documents.
func (s *BoltStore) Vectors() *BoltVectorPersister {
	return &BoltVectorPersister{db: s.db, loadOnly: true}
}

type docMeta struct {
	Filename   string `json:"filename"`
	CreatedAt  int64  `json:"created_at"`
	ChunkCount int    `json:"chunk_count"`
}

type chunkMeta struct {
	DocID      string `json:"doc_id"`
	Position   int    `json:"position"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	TokenCount int    `json:"token_count"`
}

// Save writes the document, its text, all chunks and the embeddings they
// carry. An existing document with the same id has its chunk set replaced.
func (s *BoltStore) Save(doc domain.Document, chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteChunks(tx, doc.ID); err != nil {
			return err
		}
		if err := deleteVectors(tx, doc.ID); err != nil {
			return err
		}

		meta := docMeta{
			Filename:   doc.Filename,
			CreatedAt:  doc.CreatedAt.UnixNano(),
			ChunkCount: len(chunks),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocs).Put([]byte(doc.ID), data); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocText).Put([]byte(doc.ID), []byte(doc.Text)); err != nil {
			return err
		}

		chunkBucket := tx.Bucket(bucketChunks)
		blobBucket := tx.Bucket(bucketBlobs)
		chunkIDs := make([]string, 0, len(chunks))
		var entries []domain.IndexEntry
		for _, c := range chunks {
			data, err := json.Marshal(chunkMeta{
				DocID:      doc.ID,
				Position:   c.Position,
				Start:      c.Span.Start,
				End:        c.Span.End,
				TokenCount: c.TokenCount,
			})
			if err != nil {
				return err
			}
			if err := chunkBucket.Put([]byte(c.ID), data); err != nil {
				return err
			}
			if err := blobBucket.Put([]byte(c.ID), []byte(c.Text)); err != nil {
				return err
			}
			chunkIDs = append(chunkIDs, c.ID)
			if len(c.Embedding) > 0 {
				entries = append(entries, domain.IndexEntry{ChunkID: c.ID, DocID: doc.ID, Position: c.Position, Vector: c.Embedding})
			}
		}

		idsData, err := json.Marshal(chunkIDs)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocChunks).Put([]byte(doc.ID), idsData); err != nil {
			return err
		}
		return putVectors(tx, doc.ID, entries)
	})
}

func deleteChunks(tx *bbolt.Tx, docID string) error {
	docChunks := tx.Bucket(bucketDocChunks)
	data := docChunks.Get([]byte(docID))
	if data == nil {
		return nil
	}
	var chunkIDs []string
	if err := json.Unmarshal(data, &chunkIDs); err != nil {
		return err
	}
	chunkBucket := tx.Bucket(bucketChunks)
	blobBucket := tx.Bucket(bucketBlobs)
	for _, id := range chunkIDs {
		if err := chunkBucket.Delete([]byte(id)); err != nil {
			return err
		}
		if err := blobBucket.Delete([]byte(id)); err != nil {
			return err
		}
	}
	return docChunks.Delete([]byte(docID))
}

// Delete removes the document with all its chunks and vectors.
func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocs)
		if docs.Get([]byte(id)) == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		if err := deleteChunks(tx, id); err != nil {
			return err
		}
		if err := deleteVectors(tx, id); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocText).Delete([]byte(id)); err != nil {
			return err
		}
		return docs.Delete([]byte(id))
	})
}

func decodeDoc(id string, data []byte) (domain.Document, error) {
	var meta docMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Document{}, err
	}
	return domain.Document{
		ID:         id,
		Filename:   meta.Filename,
		CreatedAt:  time.Unix(0, meta.CreatedAt),
		ChunkCount: meta.ChunkCount,
	}, nil
}

func (s *BoltStore) Get(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		var err error
		if doc, err = decodeDoc(id, data); err != nil {
			return err
		}
		doc.Text = string(tx.Bucket(bucketDocText).Get([]byte(id)))
		return nil
	})
	return doc, err
}

// List returns document manifests, oldest first. Text is not loaded.
func (s *BoltStore) List() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			doc, err := decodeDoc(string(k), v)
			if err != nil {
				return err
			}
			docs = append(docs, doc)
			return nil
		})
	})
	sortDocuments(docs)
	return docs, err
}

func sortDocuments(docs []domain.Document) {
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.Before(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
}

func readChunk(tx *bbolt.Tx, id string) (domain.Chunk, bool, error) {
	data := tx.Bucket(bucketChunks).Get([]byte(id))
	if data == nil {
		return domain.Chunk{}, false, nil
	}
	var meta chunkMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return domain.Chunk{}, false, err
	}
	return domain.Chunk{
		ID:         id,
		DocID:      meta.DocID,
		Position:   meta.Position,
		Span:       domain.Span{Start: meta.Start, End: meta.End},
		TokenCount: meta.TokenCount,
		Text:       string(tx.Bucket(bucketBlobs).Get([]byte(id))),
	}, true, nil
}

func (s *BoltStore) GetChunk(id string) (domain.Chunk, error) {
	var chunk domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		c, ok, err := readChunk(tx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
		}
		chunk = c
		return nil
	})
	return chunk, err
}

// GetChunksByDoc returns the document's chunks in position order.
func (s *BoltStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocChunks).Get([]byte(docID))
		if data == nil {
			return nil
		}
		var chunkIDs []string
		if err := json.Unmarshal(data, &chunkIDs); err != nil {
			return err
		}
		for _, id := range chunkIDs {
			c, ok, err := readChunk(tx, id)
			if err != nil {
				return err
			}
			if ok {
				chunks = append(chunks, c)
			}
		}
		return nil
	})
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
