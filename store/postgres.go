package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madshubh27/Crotex/document"
)

const drawingsSchema = `
CREATE TABLE IF NOT EXISTS drawings (
	session_id TEXT PRIMARY KEY,
	data       JSONB NOT NULL DEFAULT '[]',
	created_by TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT 'Untitled Drawing',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS drawings_created_by_idx ON drawings (created_by);
CREATE INDEX IF NOT EXISTS drawings_updated_at_idx ON drawings (updated_at DESC);
`

// PostgresStore persists drawings in a single jsonb-backed table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to url and bootstraps the schema.
func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, drawingsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create drawings table: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) FindBySessionID(ctx context.Context, sessionID string) (*Drawing, error) {
	var (
		d   Drawing
		raw []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT session_id, data, created_by, title, created_at, updated_at
		 FROM drawings WHERE session_id = $1`, sessionID).
		Scan(&d.SessionID, &raw, &d.Owner, &d.Title, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query drawing %s: %w", sessionID, err)
	}
	if err := json.Unmarshal(raw, &d.Elements); err != nil {
		return nil, fmt.Errorf("decode drawing %s: %w", sessionID, err)
	}
	return &d, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, sessionID string, elements document.Snapshot, owner string) error {
	data, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("encode drawing %s: %w", sessionID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO drawings (session_id, data, created_by)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (session_id) DO UPDATE SET
			data       = EXCLUDED.data,
			created_by = COALESCE(NULLIF(EXCLUDED.created_by, ''), drawings.created_by),
			updated_at = now()`,
		sessionID, data, owner)
	if err != nil {
		return fmt.Errorf("upsert drawing %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, owner string) ([]Drawing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT session_id, data, created_by, title, created_at, updated_at
		 FROM drawings WHERE created_by = $1 ORDER BY updated_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list drawings for %s: %w", owner, err)
	}
	defer rows.Close()

	var out []Drawing
	for rows.Next() {
		var (
			d   Drawing
			raw []byte
		)
		if err := rows.Scan(&d.SessionID, &raw, &d.Owner, &d.Title, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan drawing: %w", err)
		}
		if err := json.Unmarshal(raw, &d.Elements); err != nil {
			return nil, fmt.Errorf("decode drawing %s: %w", d.SessionID, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM drawings WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete drawing %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}
