package postgres

import (
	"strings"
	"testing"
)

// The SQL builders are the part of this backend worth testing without a live
// database: they are the contract the Exec calls rely on.

func TestCreateTableSQLShape(t *testing.T) {
	t.Parallel()

	sql := createTableSQL()
	if !strings.Contains(sql, "CREATE TABLE IF NOT EXISTS snapshots") {
		t.Fatalf("missing CREATE TABLE IF NOT EXISTS: %q", sql)
	}
	for _, col := range []string{"key TEXT PRIMARY KEY", "created_at TIMESTAMPTZ NOT NULL", "record_count INTEGER NOT NULL", "payload JSONB NOT NULL"} {
		if !strings.Contains(sql, col) {
			t.Fatalf("missing column definition %q in %q", col, sql)
		}
	}
}

func TestUpsertSQLReplacesByKey(t *testing.T) {
	t.Parallel()

	sql := upsertSQL()
	if !strings.Contains(sql, "ON CONFLICT (key) DO UPDATE") {
		t.Fatalf("upsert must replace by key: %q", sql)
	}
	for _, ph := range []string{"$1", "$2", "$3", "$4"} {
		if !strings.Contains(sql, ph) {
			t.Fatalf("missing placeholder %s: %q", ph, sql)
		}
	}
	for _, set := range []string{"created_at = EXCLUDED.created_at", "record_count = EXCLUDED.record_count", "payload = EXCLUDED.payload"} {
		if !strings.Contains(sql, set) {
			t.Fatalf("missing update clause %q in %q", set, sql)
		}
	}
}
