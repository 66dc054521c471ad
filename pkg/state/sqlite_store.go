package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	snapshot "github.com/goliatone/go-snapshot"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists one JSON document per ref in a SQLite database.
type SQLiteStore[T any] struct {
	db     *sql.DB
	decode func([]byte) (T, error)
	now    func() time.Time
}

// Record is a listing row: the ref of a stored document and its metadata.
type Record struct {
	Ref  Ref
	Meta Meta
}

// NewSQLiteStore creates or opens a SQLite database at path. Documents are
// decoded with encoding/json.
func NewSQLiteStore[T any](path string) (*SQLiteStore[T], error) {
	return openSQLiteStore(path, func(data []byte) (T, error) {
		var value T
		err := json.Unmarshal(data, &value)
		return value, err
	})
}

// OpenPayloadStore opens a SQLite store of snapshot payloads. Loaded
// payloads are schema-validated.
func OpenPayloadStore(path string) (*SQLiteStore[*snapshot.Payload], error) {
	return openSQLiteStore(path, snapshot.DecodePayload)
}

func openSQLiteStore[T any](path string, decode func([]byte) (T, error)) (*SQLiteStore[T], error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore[T]{db: db, decode: decode, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore[T]) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore[T]) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			owner TEXT,
			document TEXT,
			body JSON,
			snapshot_id TEXT,
			etag TEXT,
			updated_at TEXT,
			extra JSON
		);`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore[T]) Load(ctx context.Context, ref Ref) (T, Meta, bool, error) {
	var zero T
	key, err := ref.Identifier()
	if err != nil {
		return zero, Meta{}, false, err
	}

	var body []byte
	var meta Meta
	var updatedAt string
	var extra []byte
	err = s.db.QueryRowContext(ctx, `
		SELECT body, snapshot_id, etag, updated_at, extra FROM documents WHERE id = ?
	`, key).Scan(&body, &meta.SnapshotID, &meta.ETag, &updatedAt, &extra)
	if errors.Is(err, sql.ErrNoRows) {
		return zero, Meta{}, false, nil
	}
	if err != nil {
		return zero, Meta{}, false, err
	}

	value, err := s.decode(body)
	if err != nil {
		return zero, Meta{}, false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	if err := scanMeta(&meta, updatedAt, extra); err != nil {
		return zero, Meta{}, false, err
	}
	return value, meta, true, nil
}

func (s *SQLiteStore[T]) Save(ctx context.Context, ref Ref, value T, meta Meta) (Meta, error) {
	key, err := ref.Identifier()
	if err != nil {
		return Meta{}, err
	}
	body, err := json.Marshal(value)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %q: %w", key, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Meta{}, err
	}
	defer tx.Rollback()

	var current *Meta
	var etag string
	err = tx.QueryRowContext(ctx, `SELECT etag FROM documents WHERE id = ?`, key).Scan(&etag)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Meta{}, err
	default:
		current = &Meta{ETag: etag}
	}

	saved, err := prepareMeta(current, meta, value, s.now())
	if err != nil {
		return Meta{}, err
	}
	extra, err := json.Marshal(saved.Extra)
	if err != nil {
		return Meta{}, fmt.Errorf("state: encode %q extra: %w", key, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, owner, document, body, snapshot_id, etag, updated_at, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			body=excluded.body,
			snapshot_id=excluded.snapshot_id,
			etag=excluded.etag,
			updated_at=excluded.updated_at,
			extra=excluded.extra
	`, key, ref.Owner, ref.Document, body, saved.SnapshotID, saved.ETag, saved.UpdatedAt.Format(time.RFC3339Nano), extra)
	if err != nil {
		return Meta{}, err
	}
	if err := tx.Commit(); err != nil {
		return Meta{}, err
	}
	return saved, nil
}

// Delete removes the document for ref. Missing documents are not an error.
func (s *SQLiteStore[T]) Delete(ctx context.Context, ref Ref) error {
	key, err := ref.Identifier()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, key)
	return err
}

// List returns every stored ref ordered by key.
func (s *SQLiteStore[T]) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT owner, document, snapshot_id, etag, updated_at, extra FROM documents ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var updatedAt string
		var extra []byte
		if err := rows.Scan(&rec.Ref.Owner, &rec.Ref.Document, &rec.Meta.SnapshotID, &rec.Meta.ETag, &updatedAt, &extra); err != nil {
			return nil, err
		}
		if err := scanMeta(&rec.Meta, updatedAt, extra); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanMeta(meta *Meta, updatedAt string, extra []byte) error {
	if updatedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return fmt.Errorf("state: updated_at: %w", err)
		}
		meta.UpdatedAt = t
	}
	if len(extra) > 0 && string(extra) != "null" {
		if err := json.Unmarshal(extra, &meta.Extra); err != nil {
			return fmt.Errorf("state: extra: %w", err)
		}
	}
	return nil
}
