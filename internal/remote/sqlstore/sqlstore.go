// ABOUTME: Self-hosted remote store on SQLite holding JSON documents.
// ABOUTME: Field queries use json_extract over a single documents table.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/harperreed/liftlog/internal/remote"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);
`

// Store implements remote.Store over a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create remote directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// jsonPath builds a quoted JSON path so field names with dots stay literal.
func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// sqlValue converts a query value to what json_extract yields for it.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return 1
		}
		return 0
	case int:
		return int64(x)
	default:
		return v
	}
}

// unavailable maps driver failures to retryable errors.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return remote.Unavailable(op, err)
}

func (s *Store) Insert(ctx context.Context, collection string, doc remote.Document) (string, error) {
	id := uuid.New().String()
	d := remote.Document{}
	for k, v := range doc {
		d[k] = v
	}
	if _, ok := d["id"]; !ok {
		d["id"] = id
	}
	if err := s.upsert(ctx, "insert", collection, id, d); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Upsert(ctx context.Context, collection, id string, doc remote.Document) error {
	return s.upsert(ctx, "upsert", collection, id, doc)
}

func (s *Store) upsert(ctx context.Context, op, collection, id string, doc remote.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at`,
		collection, id, string(body), time.Now().UnixMilli())
	return unavailable(op, err)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("delete", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (remote.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, remote.ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get", err)
	}
	var doc remote.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *Store) QueryByField(ctx context.Context, collection, field string, value any, opts ...remote.QueryOption) ([]remote.Document, error) {
	q := remote.ResolveQuery(opts...)
	query := `SELECT body FROM documents WHERE collection = ? AND json_extract(body, ?) = ?`
	args := []any{collection, jsonPath(field), sqlValue(value)}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		query += ` ORDER BY json_extract(body, ?) ` + dir + `, id`
		args = append(args, jsonPath(q.OrderBy))
	} else {
		query += ` ORDER BY id`
	}
	return s.query(ctx, "query", query, args...)
}

func (s *Store) All(ctx context.Context, collection string) ([]remote.Document, error) {
	return s.query(ctx, "list", `SELECT body FROM documents WHERE collection = ? ORDER BY id`, collection)
}

func (s *Store) query(ctx context.Context, op, query string, args ...any) ([]remote.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var docs []remote.Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, unavailable(op, err)
		}
		var doc remote.Document
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}
	return docs, nil
}
