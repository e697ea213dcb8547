// Package postgres implements the snapshot store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/louisbat101/agtegra-tractors-hours/internal/store"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Store implements store.Store for Postgres. The record set is one JSONB
// payload per key; replace-by-key is INSERT ... ON CONFLICT DO UPDATE.
type Store struct {
	pool *pgxpool.Pool
}

func init() {
	store.Register("postgres", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *Store) Ensure(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("postgres: create snapshots table: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key string, recs []records.Record) error {
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot %s: %w", key, err)
	}
	_, err = s.pool.Exec(ctx, upsertSQL(), key, time.Now().UTC(), len(recs), payload)
	if err != nil {
		return fmt.Errorf("postgres: save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (*store.Snapshot, error) {
	var (
		created time.Time
		payload []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT created_at, payload FROM snapshots WHERE key = $1`, key).
		Scan(&created, &payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load snapshot %s: %w", key, err)
	}

	var recs []records.Record
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, fmt.Errorf("postgres: decode snapshot %s: %w", key, err)
	}
	return &store.Snapshot{Key: key, CreatedAt: created.UTC(), Records: recs}, nil
}

func (s *Store) List(ctx context.Context) ([]store.Info, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key, created_at, record_count FROM snapshots ORDER BY created_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.Info
	for rows.Next() {
		var info store.Info
		if err := rows.Scan(&info.Key, &info.CreatedAt, &info.RecordCount); err != nil {
			return nil, err
		}
		info.CreatedAt = info.CreatedAt.UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM snapshots WHERE key = $1`, key); err != nil {
		return fmt.Errorf("postgres: delete snapshot %s: %w", key, err)
	}
	return nil
}

func createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS snapshots (
  key TEXT PRIMARY KEY,
  created_at TIMESTAMPTZ NOT NULL,
  record_count INTEGER NOT NULL,
  payload JSONB NOT NULL
);`
}

func upsertSQL() string {
	return `INSERT INTO snapshots (key, created_at, record_count, payload)
VALUES ($1, $2, $3, $4)
ON CONFLICT (key) DO UPDATE SET
  created_at = EXCLUDED.created_at,
  record_count = EXCLUDED.record_count,
  payload = EXCLUDED.payload;`
}
