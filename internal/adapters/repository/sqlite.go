package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/opensearch-project/opensearch-metrics-sub001/internal/domain/model"
)

const schema = `CREATE TABLE IF NOT EXISTS documents (
	idx        TEXT NOT NULL,
	id         TEXT NOT NULL,
	kind       TEXT NOT NULL,
	repository TEXT NOT NULL DEFAULT '',
	day        TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	PRIMARY KEY (idx, id)
)`

const upsertSQL = `INSERT INTO documents (idx, id, kind, repository, day, body, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (idx, id) DO UPDATE SET
	kind = excluded.kind,
	repository = excluded.repository,
	day = excluded.day,
	body = excluded.body,
	updated_at = excluded.updated_at`

// SQLiteStore persists documents in a single SQLite table keyed by
// (index, id).
type SQLiteStore struct {
	db           *sql.DB
	busyTimeout  time.Duration
	maxOpenConns int
}

// OpenSQLite opens (creating if needed) the database at path and applies
// the schema.
func OpenSQLite(ctx context.Context, path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	s := &SQLiteStore{busyTimeout: 5 * time.Second, maxOpenConns: 4}
	for _, opt := range opts {
		opt(s)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		path, s.busyTimeout.Milliseconds())
	if strings.HasPrefix(path, "file:") || strings.Contains(path, ":memory:") {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(s.maxOpenConns)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite %s: %w", path, err)
	}
	s.db = db
	return s, nil
}

// Upsert writes all documents in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, docs ...Document) error {
	for _, d := range docs {
		if err := d.validate(); err != nil {
			return err
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap("begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return s.wrap("prepare upsert", err)
	}
	defer func() { _ = stmt.Close() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, d := range docs {
		if _, err := stmt.ExecContext(ctx, d.Index, d.ID, string(d.Kind), d.Repository, d.Date, string(d.Body), now); err != nil {
			return s.wrap("upsert "+d.Index+"/"+d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return s.wrap("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, index, id string) (Document, error) {
	d := Document{Index: index, ID: id}
	var kind, body string
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, repository, day, body FROM documents WHERE idx = ? AND id = ?`, index, id,
	).Scan(&kind, &d.Repository, &d.Date, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, s.wrap("get "+index+"/"+id, err)
	}
	d.Kind = model.RecordKind(kind)
	d.Body = []byte(body)
	return d, nil
}

func (s *SQLiteStore) Count(ctx context.Context, index string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE idx = ?`, index).Scan(&n); err != nil {
		return 0, s.wrap("count "+index, err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) wrap(op string, err error) error {
	if errors.Is(err, sql.ErrConnDone) || strings.Contains(err.Error(), "database is closed") {
		return fmt.Errorf("%s: %w", op, ErrClosed)
	}
	return fmt.Errorf("sqlite %s: %w", op, err)
}
