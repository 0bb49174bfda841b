package retriever

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const TableDocuments = "documents"

// StoredDocument is one row of the exemplar corpus.
type StoredDocument struct {
	ID        int64
	Content   string
	Source    string
	Model     string
	Embedding []float32
}

// Store keeps exemplar documents and their embeddings in sqlite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and creates if needed) the sqlite database at path.
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite serializes writers; one connection keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableDocuments + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			embedding TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_model ON ` + TableDocuments + `(model)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert stores docs in one transaction.
func (s *Store) Insert(ctx context.Context, docs []StoredDocument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO `+TableDocuments+` (content, source, model, embedding, updated_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, doc := range docs {
		vec, err := json.Marshal(doc.Embedding)
		if err != nil {
			return fmt.Errorf("encode embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, doc.Content, doc.Source, doc.Model, string(vec), now); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return tx.Commit()
}

// List returns every document embedded with model.
func (s *Store) List(ctx context.Context, model string) ([]StoredDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, source, model, embedding FROM `+TableDocuments+` WHERE model = ? ORDER BY id`, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []StoredDocument
	for rows.Next() {
		var doc StoredDocument
		var vec string
		if err := rows.Scan(&doc.ID, &doc.Content, &doc.Source, &doc.Model, &vec); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vec), &doc.Embedding); err != nil {
			return nil, fmt.Errorf("decode embedding of document %d: %w", doc.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+TableDocuments).Scan(&count)
	return count, err
}

// Clear removes every document.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+TableDocuments)
	return err
}
