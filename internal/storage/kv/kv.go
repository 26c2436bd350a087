// Package kv is a localStorage-like key-value store kept in one JSON file.
//
// Keys and values are strings and every write replaces a value whole. Each
// value carries a time-sortable revision so writers can detect that someone
// else changed it in between (see [Store.CompareAndSet]).
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/maruel/ksid"

	storeerrors "github.com/carbonware/bookexchange/internal/errors"
)

// ErrConflict is returned by CompareAndSet when the stored revision moved.
var ErrConflict = errors.New("revision conflict")

type entry struct {
	Value string  `json:"value"`
	Rev   ksid.ID `json:"rev"`
}

// Store is a key-value document on disk, cached in memory.
type Store struct {
	path string

	mu    sync.RWMutex
	items map[string]entry
}

// Open loads the document at path. A missing file is an empty store. Any
// other failure is STORAGE_UNAVAILABLE.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec // G301: data directory
		return nil, storeerrors.StorageUnavailable("local storage", fmt.Errorf("failed to create directory for %s: %w", path, err))
	}
	s := &Store{path: path}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return nil, storeerrors.StorageUnavailable("local storage", err)
	}
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// GetItem returns the value stored under key.
func (s *Store) GetItem(key string) (string, bool) {
	v, _, ok := s.Get(key)
	return v, ok
}

// Get returns the value stored under key and its revision.
func (s *Store) Get(key string) (value string, rev ksid.ID, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	return e.Value, e.Rev, ok
}

// Revision returns the revision of key, zero when absent.
func (s *Store) Revision(key string) ksid.ID {
	_, rev, _ := s.Get(key)
	return rev
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SetItem stores value under key unconditionally.
func (s *Store) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	_, err := s.setLocked(key, value)
	return err
}

// CompareAndSet stores value under key only if the key's revision is still
// rev, where a zero rev means the key must be absent. It returns the new
// revision, or ErrConflict.
//
// The file is re-read first so that writes from other processes are seen.
func (s *Store) CompareAndSet(key string, rev ksid.ID, value string) (ksid.ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return 0, err
	}
	if cur := s.items[key].Rev; cur != rev {
		return 0, fmt.Errorf("%w: %q is at %v, expected %v", ErrConflict, key, cur, rev)
	}
	return s.setLocked(key, value)
}

// RemoveItem deletes key. Removing an absent key is a no-op.
func (s *Store) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(); err != nil {
		return err
	}
	if _, ok := s.items[key]; !ok {
		return nil
	}
	items := cloneItems(s.items)
	delete(items, key)
	return s.saveLocked(items)
}

// Reload re-reads the file and returns the keys whose revision changed.
func (s *Store) Reload() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.items
	if err := s.loadLocked(); err != nil {
		return nil, err
	}
	var changed []string
	for k, e := range s.items {
		if p, ok := prev[k]; !ok || p.Rev != e.Rev {
			changed = append(changed, k)
		}
	}
	for k := range prev {
		if _, ok := s.items[k]; !ok {
			changed = append(changed, k)
		}
	}
	slices.Sort(changed)
	return changed, nil
}

// Watch calls fn with each key changed by another writer of the file, until
// ctx is canceled. It watches the parent directory since writes replace the
// file through a rename.
func (s *Store) Watch(ctx context.Context, fn func(key string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		_ = w.Close()
		return err
	}
	target := filepath.Clean(s.path)
	go func() {
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || (event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write)) {
					continue
				}
				changed, err := s.Reload()
				if err != nil {
					slog.WarnContext(ctx, "kv: reload failed", "path", s.path, "err", err)
					continue
				}
				for _, k := range changed {
					fn(k)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "kv: watch error", "path", s.path, "err", err)
			}
		}
	}()
	return nil
}

func (s *Store) setLocked(key, value string) (ksid.ID, error) {
	items := cloneItems(s.items)
	rev := ksid.NewID()
	items[key] = entry{Value: value, Rev: rev}
	if err := s.saveLocked(items); err != nil {
		return 0, err
	}
	return rev, nil
}

func (s *Store) loadLocked() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.items = map[string]entry{}
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	items := map[string]entry{}
	if len(data) != 0 {
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("failed to parse %s: %w", s.path, err)
		}
	}
	s.items = items
	return nil
}

func (s *Store) saveLocked(items map[string]entry) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", s.path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temporary file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	s.items = items
	return nil
}

func cloneItems(m map[string]entry) map[string]entry {
	out := make(map[string]entry, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
