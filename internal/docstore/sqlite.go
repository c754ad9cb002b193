// Package docstore provides the remote document stores the mirror writes to.
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"humidity-monitor/internal/mirror"
)

// Merge uses json_patch (RFC 7396) so keys already in the body survive.
const upsertDocumentSQL = `
INSERT INTO documents (collection, id, body)
VALUES (?, ?, json(?))
ON CONFLICT (collection, id) DO UPDATE SET
  body       = json_patch(documents.body, excluded.body),
  updated_at = strftime('%Y-%m-%dT%H:%M:%fZ','now')
`

const getDocumentSQL = `SELECT body FROM documents WHERE collection = ? AND id = ?`

// SQLiteStore keeps documents as JSON bodies in the documents table created
// by the migrate package.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Document(collection, key string) (mirror.Document, error) {
	if collection == "" || key == "" {
		return nil, fmt.Errorf("empty document path %q/%q", collection, key)
	}
	return &sqliteDocument{db: s.db, collection: collection, id: key}, nil
}

// Get returns the decoded body of a document, or nil when it does not exist.
func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (map[string]mirror.Entry, error) {
	var body string
	err := s.db.QueryRowContext(ctx, getDocumentSQL, collection, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s/%s: %w", collection, key, err)
	}
	out := make(map[string]mirror.Entry)
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("decode document %s/%s: %w", collection, key, err)
	}
	return out, nil
}

type sqliteDocument struct {
	db         *sql.DB
	collection string
	id         string
}

func (d *sqliteDocument) Merge(ctx context.Context, fields map[string]mirror.Entry) error {
	patch, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}
	if _, err := d.db.ExecContext(ctx, upsertDocumentSQL, d.collection, d.id, string(patch)); err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}
