// Package listing is the repository of book listings.
//
// A Repository is built once at startup over a [Store] (the jsonldb
// collection or the SQLite table) and shared by reference. Every call checks
// its context before running one store operation and hands store failures
// back to the caller without retrying. Reads check the context again
// afterwards and drop their result if it was canceled; a completed write is
// reported as done.
package listing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carbonware/bookexchange/internal/entity"
	storeerrors "github.com/carbonware/bookexchange/internal/errors"
	"github.com/carbonware/bookexchange/internal/validate"
)

// Repository exposes CRUD and seeding over the listing collection.
type Repository struct {
	store Store
	now   func() time.Time
	seeds []Seed
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for new listings.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithSeeds replaces the demo catalog inserted by EnsureSeedBooks.
func WithSeeds(seeds []Seed) Option {
	return func(r *Repository) { r.seeds = seeds }
}

// NewRepository returns a repository over store.
func NewRepository(store Store, opts ...Option) *Repository {
	r := &Repository{store: store, now: time.Now, seeds: DemoBooks}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Add inserts l. It fails with DUPLICATE_KEY if the id exists.
func (r *Repository) Add(ctx context.Context, l *entity.BookListing) error {
	if err := checkListing(ctx, l); err != nil {
		return err
	}
	if err := r.store.Insert(ctx, l); err != nil {
		return fmt.Errorf("add listing %s: %w", l.ID, err)
	}
	slog.DebugContext(ctx, "listing: added", "id", l.ID)
	return nil
}

// Update inserts l or replaces the listing with the same id.
func (r *Repository) Update(ctx context.Context, l *entity.BookListing) error {
	if err := checkListing(ctx, l); err != nil {
		return err
	}
	if err := r.store.Put(ctx, l); err != nil {
		return fmt.Errorf("update listing %s: %w", l.ID, err)
	}
	slog.DebugContext(ctx, "listing: updated", "id", l.ID)
	return nil
}

// Delete removes the listing with the given id. A missing id is not an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.store.Remove(ctx, id); err != nil {
		return fmt.Errorf("delete listing %s: %w", id, err)
	}
	slog.DebugContext(ctx, "listing: deleted", "id", id)
	return nil
}

// GetAll returns every listing in store order.
func (r *Repository) GetAll(ctx context.Context) ([]*entity.BookListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return all, nil
}

// GetByID returns the listing with the given id, or nil if there is none.
func (r *Repository) GetByID(ctx context.Context, id string) (*entity.BookListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := r.store.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get listing %s: %w", id, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l, nil
}

// NewListing validates form input and turns it into a listing with a fresh
// id and timestamp. It does not store it.
func (r *Repository) NewListing(in validate.ListingInput) (*entity.BookListing, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	l := &entity.BookListing{
		ID:            entity.NewID(),
		BookName:      validate.Trim(in.BookName),
		BookTitle:     validate.Trim(in.BookTitle),
		Genre:         validate.Trim(in.Genre),
		OriginalPrice: validate.Trim(in.OriginalPrice),
		ListingPrice:  validate.Trim(in.ListingPrice),
		Email:         validate.Trim(in.Email),
		CreatedAt:     entity.Timestamp(r.now()),
	}
	if img := validate.Trim(in.Image); img != "" {
		l.Image = &img
	}
	return l, nil
}

// Create is the form submission flow: NewListing followed by Add.
func (r *Repository) Create(ctx context.Context, in validate.ListingInput) (*entity.BookListing, error) {
	l, err := r.NewListing(in)
	if err != nil {
		return nil, err
	}
	if err := r.Add(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func checkListing(ctx context.Context, l *entity.BookListing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if l == nil {
		return storeerrors.ValidationFailed("listing is required")
	}
	if err := l.Validate(); err != nil {
		return storeerrors.ValidationFailed("invalid listing").Wrap(err).WithDetail("id", l.ID)
	}
	return nil
}
