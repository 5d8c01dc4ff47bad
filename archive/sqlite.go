// Package archive mirrors produced upstream responses into SQLite for inspection.
// The cache only writes here; nothing is read back on startup.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	_ "github.com/mattn/go-sqlite3"

	"github.com/krisalay/routecache/types"
)

var ErrNotFound = errors.New("archive: no record for key")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one archived response.
type Record struct {
	Key       string
	Body      []byte
	StoredAt  time.Time
	ExpiresAt time.Time
}

type SQLite struct {
	db *sql.DB
}

var _ types.Archive = (*SQLite)(nil)

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// database/sql pools connections; SQLite wants a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS responses (
		key        TEXT PRIMARY KEY,
		body       BLOB NOT NULL,
		stored_at  INTEGER NOT NULL,
		expires_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create table: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Put upserts the entry under its key.
func (a *SQLite) Put(ctx context.Context, ent *types.CacheEntry) error {
	body, err := Encode(ent.Value)
	if err != nil {
		return fmt.Errorf("archive: encode %q: %w", ent.Key, err)
	}

	_, err = a.db.ExecContext(ctx, `INSERT INTO responses (key, body, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body = excluded.body,
			stored_at = excluded.stored_at,
			expires_at = excluded.expires_at`,
		ent.Key, body, ent.StoredAt.UnixNano(), ent.ExpiresAt().UnixNano())
	if err != nil {
		return fmt.Errorf("archive: put %q: %w", ent.Key, err)
	}
	return nil
}

func (a *SQLite) Get(ctx context.Context, key string) (Record, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT key, body, stored_at, expires_at FROM responses WHERE key = ?`, key)

	var rec Record
	var storedAt, expiresAt int64
	err := row.Scan(&rec.Key, &rec.Body, &storedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("archive: get %q: %w", key, err)
	}

	rec.StoredAt = time.Unix(0, storedAt)
	rec.ExpiresAt = time.Unix(0, expiresAt)
	return rec, nil
}

func (a *SQLite) Erase(ctx context.Context, key string) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM responses WHERE key = ?`, key)
	return err
}

func (a *SQLite) Clear(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `DELETE FROM responses`)
	return err
}

func (a *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM responses`).Scan(&n)
	return n, err
}

func (a *SQLite) Close() error {
	return a.db.Close()
}

// Encode turns a cached value into archive bytes. Raw bodies are kept as-is; anything else is JSON.
func Encode(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case string:
		return []byte(b), nil
	default:
		return json.Marshal(v)
	}
}
