package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS consultations (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	input      TEXT NOT NULL DEFAULT '',
	source     TEXT NOT NULL DEFAULT '',
	raw        TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS consultations_created_at ON consultations (created_at DESC);
`

// SQLiteStore persists consultations in a single SQLite file.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// timeLayout has fixed width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// row mirrors the table.
type row struct {
	ID        string `db:"id"`
	Kind      string `db:"kind"`
	Input     string `db:"input"`
	Source    string `db:"source"`
	Raw       string `db:"raw"`
	CreatedAt string `db:"created_at"`
}

func (r row) consultation() Consultation {
	created, _ := time.Parse(timeLayout, r.CreatedAt)
	return Consultation{
		ID:        r.ID,
		Kind:      Kind(r.Kind),
		Input:     r.Input,
		Source:    r.Source,
		Raw:       r.Raw,
		CreatedAt: created,
	}
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sqlx.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Save(ctx context.Context, c *Consultation) error {
	prepare(c, s.now)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO consultations (id, kind, input, source, raw, created_at)
		VALUES (:id, :kind, :input, :source, :raw, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			input = excluded.input,
			source = excluded.source,
			raw = excluded.raw`,
		row{
			ID:        c.ID,
			Kind:      string(c.Kind),
			Input:     c.Input,
			Source:    c.Source,
			Raw:       c.Raw,
			CreatedAt: c.CreatedAt.UTC().Format(timeLayout),
		})
	if err != nil {
		return fmt.Errorf("save consultation %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Consultation, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT id, kind, input, source, raw, created_at FROM consultations WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Consultation{}, ErrNotFound
	}
	if err != nil {
		return Consultation{}, fmt.Errorf("get consultation %s: %w", id, err)
	}
	return r.consultation(), nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Consultation, error) {
	var rows []row
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, kind, input, source, raw, created_at FROM consultations ORDER BY created_at DESC, id DESC LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list consultations: %w", err)
	}
	out := make([]Consultation, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.consultation())
	}
	return out, nil
}
