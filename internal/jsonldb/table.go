package jsonldb

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"sync"
)

var (
	// ErrDuplicateKey is returned by Append when a row with the same id exists.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrVersion is returned when a table file was written with a newer version
	// than the one requested.
	ErrVersion = errors.New("stored version is newer than requested")
)

// Cloner is implemented by types that can clone themselves.
type Cloner[T any] interface {
	Clone() T
}

// Row is implemented by every type stored in a Table.
type Row[T any] interface {
	Cloner[T]
	GetID() string
	Validate() error
}

// Table handles storage and in-memory caching for a single collection.
type Table[T Row[T]] struct {
	path string

	mu     sync.RWMutex
	header schemaHeader
	rows   []T
	byID   map[string]int
}

// newTable loads the table at path, creating or upgrading it to version.
// upgraded is true when the file was created or its version bumped.
func newTable[T Row[T]](path string, version int) (table *Table[T], upgraded bool, err error) {
	if version < 1 {
		return nil, false, errInvalidDBVersion
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	t := &Table[T]{path: path}
	found, err := t.load()
	if err != nil {
		return nil, false, err
	}
	switch {
	case !found:
		upgraded = true
	case t.header.DBVersion > version:
		return nil, false, fmt.Errorf("%w: %s has version %d, requested %d", ErrVersion, path, t.header.DBVersion, version)
	case t.header.DBVersion < version:
		upgraded = true
	}
	if upgraded {
		h, err := newSchemaHeader[T](version)
		if err != nil {
			return nil, false, err
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		t.header = h
		if err := t.saveLocked(t.rows); err != nil {
			return nil, false, err
		}
	}
	return t, upgraded, nil
}

// load reads the file. found is false when there is no file or it is empty.
func (t *Table[T]) load() (found bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = []T{}
	t.byID = map[string]int{}

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to open table file %s: %w", t.path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	r := bufio.NewReader(f)
	first := true
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return false, fmt.Errorf("failed to read table file %s: %w", t.path, err)
		}
		line = bytes.TrimSpace(line)
		if len(line) != 0 {
			if first {
				if err := json.Unmarshal(line, &t.header); err != nil {
					return false, fmt.Errorf("failed to unmarshal header in %s: %w", t.path, err)
				}
				if err := t.header.Validate(); err != nil {
					return false, fmt.Errorf("invalid header in %s: %w", t.path, err)
				}
				first = false
			} else {
				var row T
				if err := json.Unmarshal(line, &row); err != nil {
					return false, fmt.Errorf("failed to unmarshal row %d in %s: %w", lineNo, t.path, err)
				}
				id := row.GetID()
				if _, dup := t.byID[id]; dup {
					return false, fmt.Errorf("%w: %q at line %d in %s", ErrDuplicateKey, id, lineNo, t.path)
				}
				t.byID[id] = len(t.rows)
				t.rows = append(t.rows, row)
			}
		}
		if err == io.EOF {
			break
		}
	}
	return !first, nil
}

// Version returns the collection version recorded in the header.
func (t *Table[T]) Version() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.header.DBVersion
}

// Len returns the number of rows.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Get returns a clone of the row with the given id, or the zero value if absent.
func (t *Table[T]) Get(id string) T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	i, ok := t.byID[id]
	if !ok {
		var zero T
		return zero
	}
	return t.rows[i].Clone()
}

// All returns an iterator over clones of all rows in insertion order.
func (t *Table[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		for _, row := range t.rows {
			if !yield(row.Clone()) {
				return
			}
		}
	}
}

// Append adds a new row and persists it. It fails with ErrDuplicateKey when
// the id already exists.
func (t *Table[T]) Append(row T) error {
	if err := row.Validate(); err != nil {
		return fmt.Errorf("invalid row: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	id := row.GetID()
	if _, ok := t.byID[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateKey, id)
	}
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal row: %w", err)
	}

	f, err := os.OpenFile(t.path, os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec // G302: data file
	if err != nil {
		return fmt.Errorf("failed to open table file for append: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}

	row = row.Clone()
	t.byID[id] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

// Update inserts the row or replaces the row with the same id. It returns the
// previous row, or the zero value if the id was new.
func (t *Table[T]) Update(row T) (T, error) {
	var zero T
	if err := row.Validate(); err != nil {
		return zero, fmt.Errorf("invalid row: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	rows := make([]T, len(t.rows), len(t.rows)+1)
	copy(rows, t.rows)
	prev := zero
	if i, ok := t.byID[row.GetID()]; ok {
		prev = rows[i]
		rows[i] = row.Clone()
	} else {
		rows = append(rows, row.Clone())
	}
	if err := t.saveLocked(rows); err != nil {
		return zero, err
	}
	return prev, nil
}

// Delete removes the row with the given id. It returns false when no row had
// that id, which is not an error.
func (t *Table[T]) Delete(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.byID[id]
	if !ok {
		return false, nil
	}
	rows := make([]T, 0, len(t.rows)-1)
	rows = append(rows, t.rows[:i]...)
	rows = append(rows, t.rows[i+1:]...)
	if err := t.saveLocked(rows); err != nil {
		return false, err
	}
	return true, nil
}

// Replace replaces all rows with the provided slice and persists it.
func (t *Table[T]) Replace(rows []T) error {
	seen := make(map[string]struct{}, len(rows))
	cloned := make([]T, 0, len(rows))
	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return fmt.Errorf("invalid row: %w", err)
		}
		if _, dup := seen[row.GetID()]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, row.GetID())
		}
		seen[row.GetID()] = struct{}{}
		cloned = append(cloned, row.Clone())
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked(cloned)
}

// saveLocked writes header and rows to a temporary file, renames it over the
// table file and swaps the in-memory state. t.mu must be held.
func (t *Table[T]) saveLocked(rows []T) error {
	tmp, err := os.CreateTemp(filepath.Dir(t.path), filepath.Base(t.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary table file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	if err := enc.Encode(&t.header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary table file: %w", err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("failed to replace table file: %w", err)
	}
	committed = true

	byID := make(map[string]int, len(rows))
	for i, row := range rows {
		byID[row.GetID()] = i
	}
	t.rows = rows
	t.byID = byID
	return nil
}
