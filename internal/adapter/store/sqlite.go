package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/justineyoo1/PDFResearchAssistant/internal/domain"
)

//go:embed sqlite_migrations/*.sql
var sqliteMigrations embed.FS

// SQLiteStore is a document repository on modernc.org/sqlite. Chunks are
// removed with their document through ON DELETE CASCADE.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path and applies migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	sub, err := fs.Sub(sqliteMigrations, "sqlite_migrations")
	if err != nil {
		return err
	}
	entries, err := fs.ReadDir(sub, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(sub, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// Save writes the document and its chunks in one transaction, replacing any
// previous chunk set for the same id.
func (s *SQLiteStore) Save(doc domain.Document, chunks []domain.Chunk) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM chunks WHERE doc_id = ?", doc.ID); err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO documents (id, filename, body, created_at, chunk_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			body = excluded.body,
			chunk_count = excluded.chunk_count
	`, doc.ID, doc.Filename, doc.Text, doc.CreatedAt.UnixNano(), len(chunks)); err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, doc_id, position, start_off, end_off, token_count, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, c.Position, c.Span.Start, c.Span.End, c.TokenCount, c.Text); err != nil {
			return fmt.Errorf("saving chunk %d: %w", c.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Get(id string) (domain.Document, error) {
	var doc domain.Document
	var created int64
	err := s.db.QueryRow(
		"SELECT id, filename, body, created_at, chunk_count FROM documents WHERE id = ?", id,
	).Scan(&doc.ID, &doc.Filename, &doc.Text, &created, &doc.ChunkCount)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("scanning document: %w", err)
	}
	doc.CreatedAt = time.Unix(0, created)
	return doc, nil
}

// List returns document manifests, oldest first. Text is not loaded.
func (s *SQLiteStore) List() ([]domain.Document, error) {
	rows, err := s.db.Query("SELECT id, filename, created_at, chunk_count FROM documents ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var created int64
		if err := rows.Scan(&doc.ID, &doc.Filename, &created, &doc.ChunkCount); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.CreatedAt = time.Unix(0, created)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

const chunkColumns = "id, doc_id, position, start_off, end_off, token_count, body"

func scanChunk(scan func(dest ...any) error) (domain.Chunk, error) {
	var c domain.Chunk
	err := scan(&c.ID, &c.DocID, &c.Position, &c.Span.Start, &c.Span.End, &c.TokenCount, &c.Text)
	return c, err
}

func (s *SQLiteStore) GetChunk(id string) (domain.Chunk, error) {
	row := s.db.QueryRow("SELECT "+chunkColumns+" FROM chunks WHERE id = ?", id)
	c, err := scanChunk(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Chunk{}, fmt.Errorf("chunk %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}
	return c, nil
}

func (s *SQLiteStore) GetChunksByDoc(docID string) ([]domain.Chunk, error) {
	rows, err := s.db.Query("SELECT "+chunkColumns+" FROM chunks WHERE doc_id = ? ORDER BY position", docID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Clear removes every document and chunk.
func (s *SQLiteStore) Clear() error {
	_, err := s.db.Exec("DELETE FROM documents")
	return err
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
