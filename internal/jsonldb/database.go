package jsonldb

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Database is a directory of tables. Table handles are memoized per
// collection name and version.
type Database struct {
	dir string

	mu     sync.Mutex
	tables map[tableKey]any
}

type tableKey struct {
	name    string
	version int
}

// Open opens the database rooted at dir, creating the directory if needed.
func Open(dir string) (*Database, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
	}
	// MkdirAll succeeds on an existing read-only directory; check writability
	// now so the caller learns about it at open time.
	tmp, err := os.CreateTemp(dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("database directory %s is not writable: %w", dir, err)
	}
	_ = tmp.Close()
	_ = os.Remove(tmp.Name())
	return &Database{dir: dir, tables: map[tableKey]any{}}, nil
}

// Dir returns the database directory.
func (db *Database) Dir() string {
	return db.dir
}

// Path returns the file path of the named collection.
func (db *Database) Path(name string) string {
	return filepath.Join(db.dir, name+".jsonl")
}

// OpenTable returns the table for the named collection at the given version.
//
// The first call for a (name, version) pair loads the file, creating it when
// absent and upgrading it when its version is lower. Later calls return the
// same handle. Opening a newer version forgets handles of older versions of
// the same collection.
func OpenTable[T Row[T]](ctx context.Context, db *Database, name string, version int) (*Table[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	key := tableKey{name: name, version: version}

	db.mu.Lock()
	defer db.mu.Unlock()
	if v, ok := db.tables[key]; ok {
		t, ok := v.(*Table[T])
		if !ok {
			return nil, fmt.Errorf("collection %q is already open with a different row type", name)
		}
		return t, nil
	}

	t, upgraded, err := newTable[T](db.Path(name), version)
	if err != nil {
		return nil, err
	}
	if upgraded {
		slog.InfoContext(ctx, "jsonldb: collection upgraded", "collection", name, "version", version, "rows", t.Len())
	}
	for k := range db.tables {
		if k.name == name && k.version < version {
			delete(db.tables, k)
		}
	}
	db.tables[key] = t
	return t, nil
}
