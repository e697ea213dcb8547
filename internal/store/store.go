// Package store persists processed record sets as snapshots keyed by a
// filename-like string. The pipeline itself never touches a store; callers
// (the API server, the batch CLI) save pipeline output here and read it back
// for display and export.
//
// Backends register themselves by kind ("sqlite", "postgres", "mssql") from
// init functions in their own packages; blank-import internal/store/all to
// get all of them.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/louisbat101/agtegra-tractors-hours/pkg/records"
)

// Config selects and configures a backend.
type Config struct {
	// Kind must match a registered backend kind.
	Kind string
	// DSN is passed through to the backend; its format is backend-specific.
	DSN string
}

// Snapshot is one persisted record set.
type Snapshot struct {
	Key       string           `json:"key"`
	CreatedAt time.Time        `json:"created_at"`
	Records   []records.Record `json:"records"`
}

// Info describes a stored snapshot without its payload.
type Info struct {
	Key         string    `json:"key"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
}

// Store is the snapshot persistence contract all backends implement.
//
// Save replaces any existing snapshot under the same key. Load returns a nil
// snapshot (and nil error) for an unknown key; errors are reserved for the
// backend failing. Delete of an unknown key is a no-op.
type Store interface {
	// Ensure creates the backing schema if it does not exist yet. Safe to
	// call on every startup.
	Ensure(ctx context.Context) error

	Save(ctx context.Context, key string, recs []records.Record) error
	Load(ctx context.Context, key string) (*Snapshot, error)
	List(ctx context.Context) ([]Info, error)
	Delete(ctx context.Context, key string) error

	// Ping reports whether the backend is reachable. Used by health checks.
	Ping(ctx context.Context) error

	// Close releases backend resources. Call once at shutdown.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind. Backend packages call
// this from init. Registering an empty kind, a nil factory, or the same kind
// twice panics: backend selection must never be ambiguous.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Store using the registered factory for cfg.Kind.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("store: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("store: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
