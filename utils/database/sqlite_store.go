package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore keeps every domain in one documents table.
type SQLiteStore struct {
	db *sqlx.DB
}

type document struct {
	Key   string `db:"doc_key"`
	Value string `db:"value"`
}

// NewSQLiteStore opens dbPath and ensures the documents table exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to connect to store database: %w", err)
	}

	schema := `
    CREATE TABLE IF NOT EXISTS documents (
        domain TEXT NOT NULL,
        doc_key TEXT NOT NULL,
        value TEXT NOT NULL,
        updated_at DATETIME NOT NULL,
        PRIMARY KEY (domain, doc_key)
    );`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, domain Domain, key string) (json.RawMessage, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM documents WHERE domain = ? AND doc_key = ?", string(domain), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", domain, key, err)
	}
	return json.RawMessage(value), nil
}

func (s *SQLiteStore) Save(ctx context.Context, domain Domain, key string, value json.RawMessage) error {
	query := `
    INSERT INTO documents (domain, doc_key, value, updated_at)
    VALUES (?, ?, ?, ?)
    ON CONFLICT(domain, doc_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`

	if _, err := s.db.ExecContext(ctx, query, string(domain), key, string(value), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", domain, key, err)
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, domain Domain, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE domain = ? AND doc_key = ?", string(domain), key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", domain, key, err)
	}
	return nil
}

func (s *SQLiteStore) Scan(ctx context.Context, domain Domain) (map[string]json.RawMessage, error) {
	var docs []document
	if err := s.db.SelectContext(ctx, &docs, "SELECT doc_key, value FROM documents WHERE domain = ?", string(domain)); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", domain, err)
	}
	out := make(map[string]json.RawMessage, len(docs))
	for _, d := range docs {
		out[d.Key] = json.RawMessage(d.Value)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
