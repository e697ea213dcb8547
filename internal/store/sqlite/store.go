// Package sqlite implements the snapshot store on SQLite via the pure-Go
// modernc.org driver. It is the default backend for single-machine
// deployments: the DSN is just a file path.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/louisbat101/agtegra-tractors-hours/internal/store"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Store implements store.Store for SQLite.
//
// SQLite has no timestamp type worth trusting across drivers; created_at is
// stored as an RFC3339Nano string and parsed on the way out. The record set
// itself is one JSON payload per key, which keeps writes atomic per snapshot
// without explicit transactions.
type Store struct {
	db *sql.DB
}

func init() {
	store.Register("sqlite", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() { _ = s.db.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Ensure(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createTableSQL()); err != nil {
		return fmt.Errorf("sqlite: create snapshots table: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key string, recs []records.Record) error {
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("sqlite: encode snapshot %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, upsertSQL(),
		key, formatTime(time.Now()), len(recs), string(payload))
	if err != nil {
		return fmt.Errorf("sqlite: save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (*store.Snapshot, error) {
	var (
		createdRaw string
		payload    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, payload FROM snapshots WHERE key = ?`, key).
		Scan(&createdRaw, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: load snapshot %s: %w", key, err)
	}

	created, err := parseTime(createdRaw)
	if err != nil {
		return nil, fmt.Errorf("sqlite: snapshot %s created_at: %w", key, err)
	}

	var recs []records.Record
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		return nil, fmt.Errorf("sqlite: decode snapshot %s: %w", key, err)
	}
	return &store.Snapshot{Key: key, CreatedAt: created, Records: recs}, nil
}

func (s *Store) List(ctx context.Context) ([]store.Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, created_at, record_count FROM snapshots ORDER BY created_at DESC, key`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
	}
	defer rows.Close()

	var out []store.Info
	for rows.Next() {
		var (
			info       store.Info
			createdRaw string
		)
		if err := rows.Scan(&info.Key, &createdRaw, &info.RecordCount); err != nil {
			return nil, err
		}
		if info.CreatedAt, err = parseTime(createdRaw); err != nil {
			return nil, fmt.Errorf("sqlite: snapshot %s created_at: %w", info.Key, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("sqlite: delete snapshot %s: %w", key, err)
	}
	return nil
}

func createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS snapshots (
  "key" TEXT PRIMARY KEY,
  "created_at" TEXT NOT NULL,
  "record_count" INTEGER NOT NULL,
  "payload" TEXT NOT NULL
);`
}

// upsertSQL replaces an existing snapshot under the same key. ON CONFLICT
// needs the PRIMARY KEY on "key", which createTableSQL guarantees.
func upsertSQL() string {
	return `INSERT INTO snapshots ("key", "created_at", "record_count", "payload")
VALUES (?, ?, ?, ?)
ON CONFLICT("key") DO UPDATE SET
  "created_at" = excluded."created_at",
  "record_count" = excluded."record_count",
  "payload" = excluded."payload";`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}
