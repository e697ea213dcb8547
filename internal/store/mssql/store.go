// Package mssql implements the snapshot store on Microsoft SQL Server via
// database/sql.
//
// This package does not blank-import a SQL Server driver; the application
// registers the "sqlserver" driver elsewhere (internal/store/all does it for
// the shipped binaries).
package mssql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/internal/store"
	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Store implements store.Store for SQL Server.
//
// SQL Server has no ON CONFLICT; replace-by-key runs UPDATE first and falls
// back to INSERT when no row was touched, inside one transaction so two
// writers for the same key serialize on the key row.
type Store struct {
	db *sql.DB
}

func init() {
	store.Register("mssql", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
		return fmt.Errorf("mssql: create snapshots table: %w", err)
	}
	return nil
}

func (s *Store) Save(ctx context.Context, key string, recs []records.Record) error {
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("mssql: encode snapshot %s: %w", key, err)
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mssql: save snapshot %s: %w", key, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, updateSQL(), key, now, len(recs), string(payload))
	if err != nil {
		return fmt.Errorf("mssql: save snapshot %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mssql: save snapshot %s: %w", key, err)
	}
	if n == 0 {
		if _, err := tx.ExecContext(ctx, insertSQL(), key, now, len(recs), string(payload)); err != nil {
			return fmt.Errorf("mssql: save snapshot %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mssql: save snapshot %s: %w", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) (*store.Snapshot, error) {
	var (
		created time.Time
		payload string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at, payload FROM snapshots WHERE [key] = @p1`, key).
		Scan(&created, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mssql: load snapshot %s: %w", key, err)
	}

	var recs []records.Record
	if err := json.Unmarshal([]byte(payload), &recs); err != nil {
		return nil, fmt.Errorf("mssql: decode snapshot %s: %w", key, err)
	}
	return &store.Snapshot{Key: key, CreatedAt: created.UTC(), Records: recs}, nil
}

func (s *Store) List(ctx context.Context) ([]store.Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT [key], created_at, record_count FROM snapshots ORDER BY created_at DESC, [key]`)
	if err != nil {
		return nil, fmt.Errorf("mssql: list snapshots: %w", err)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE [key] = @p1`, key); err != nil {
		return fmt.Errorf("mssql: delete snapshot %s: %w", key, err)
	}
	return nil
}

func createTableSQL() string {
	return `IF OBJECT_ID(N'snapshots', N'U') IS NULL
CREATE TABLE snapshots (
  [key] NVARCHAR(450) NOT NULL PRIMARY KEY,
  created_at DATETIMEOFFSET NOT NULL,
  record_count INT NOT NULL,
  payload NVARCHAR(MAX) NOT NULL
);`
}

func updateSQL() string {
	return `UPDATE snapshots
SET created_at = @p2, record_count = @p3, payload = @p4
WHERE [key] = @p1;`
}

func insertSQL() string {
	return `INSERT INTO snapshots ([key], created_at, record_count, payload)
VALUES (@p1, @p2, @p3, @p4);`
}
