package listing

import (
	"context"
	"errors"
	"fmt"

	"github.com/carbonware/bookexchange/internal/entity"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/jsonldb"
)

// Store is the persistence port of the repository: one collection of
// listings keyed by id.
//
// Insert must fail with an error matching errors.ErrDuplicateKey when the id
// exists. Lookup returns nil, nil for a missing id.
type Store interface {
	Insert(ctx context.Context, l *entity.BookListing) error
	Put(ctx context.Context, l *entity.BookListing) error
	Remove(ctx context.Context, id string) error
	List(ctx context.Context) ([]*entity.BookListing, error)
	Lookup(ctx context.Context, id string) (*entity.BookListing, error)
	Count(ctx context.Context) (int, error)
}

// TableStore adapts a jsonldb table to Store. Write failures other than a
// duplicate id are STORAGE_UNAVAILABLE.
type TableStore struct {
	table *jsonldb.Table[*entity.BookListing]
	name  string
}

// OpenTableStore opens the collection in db at the given version.
func OpenTableStore(ctx context.Context, db *jsonldb.Database, collection string, version int) (*TableStore, error) {
	t, err := jsonldb.OpenTable[*entity.BookListing](ctx, db, collection, version)
	if err != nil {
		return nil, storeerrors.StorageUnavailable(fmt.Sprintf("collection %q", collection), err)
	}
	return &TableStore{table: t, name: collection}, nil
}

// Insert implements Store.
func (s *TableStore) Insert(_ context.Context, l *entity.BookListing) error {
	if err := s.table.Append(l); err != nil {
		if errors.Is(err, jsonldb.ErrDuplicateKey) {
			return storeerrors.DuplicateKey(l.ID).Wrap(err)
		}
		return s.unavailable(err)
	}
	return nil
}

// Put implements Store.
func (s *TableStore) Put(_ context.Context, l *entity.BookListing) error {
	if _, err := s.table.Update(l); err != nil {
		return s.unavailable(err)
	}
	return nil
}

// Remove implements Store.
func (s *TableStore) Remove(_ context.Context, id string) error {
	if _, err := s.table.Delete(id); err != nil {
		return s.unavailable(err)
	}
	return nil
}

// List implements Store.
func (s *TableStore) List(_ context.Context) ([]*entity.BookListing, error) {
	out := make([]*entity.BookListing, 0, s.table.Len())
	for l := range s.table.All() {
		out = append(out, l)
	}
	return out, nil
}

// Lookup implements Store.
func (s *TableStore) Lookup(_ context.Context, id string) (*entity.BookListing, error) {
	return s.table.Get(id), nil
}

// Count implements Store.
func (s *TableStore) Count(_ context.Context) (int, error) {
	return s.table.Len(), nil
}

func (s *TableStore) unavailable(err error) error {
	return storeerrors.StorageUnavailable(fmt.Sprintf("collection %q", s.name), err)
}

var _ Store = (*TableStore)(nil)
