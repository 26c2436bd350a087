package listing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/carbonware/bookexchange/internal/entity"
)

// Seed is the catalog content of a demo listing. Ids and timestamps are
// assigned when it is inserted.
type Seed struct {
	Image         string
	BookName      string
	BookTitle     string
	Genre         string
	OriginalPrice string
	ListingPrice  string
	Email         string
}

// DemoBooks is the catalog inserted into an empty collection.
var DemoBooks = []Seed{
	{
		Image:         "https://picsum.photos/seed/dune/300/450",
		BookName:      "Frank Herbert",
		BookTitle:     "Dune",
		Genre:         "Science Fiction",
		OriginalPrice: "18.99",
		ListingPrice:  "9.50",
		Email:         "paul.reader@example.com",
	},
	{
		Image:         "https://picsum.photos/seed/pride/300/450",
		BookName:      "Jane Austen",
		BookTitle:     "Pride and Prejudice",
		Genre:         "Classic",
		OriginalPrice: "12.00",
		ListingPrice:  "5.00",
		Email:         "lizzy.b@example.com",
	},
	{
		Image:         "https://picsum.photos/seed/sapiens/300/450",
		BookName:      "Yuval Noah Harari",
		BookTitle:     "Sapiens",
		Genre:         "History",
		OriginalPrice: "24.99",
		ListingPrice:  "14.00",
		Email:         "history.buff@example.com",
	},
	{
		Image:         "https://picsum.photos/seed/hobbit/300/450",
		BookName:      "J.R.R. Tolkien",
		BookTitle:     "The Hobbit",
		Genre:         "Fantasy",
		OriginalPrice: "15.50",
		ListingPrice:  "7.25",
		Email:         "bilbo.shelf@example.com",
	},
	{
		Image:         "https://picsum.photos/seed/gopl/300/450",
		BookName:      "Alan Donovan",
		BookTitle:     "The Go Programming Language",
		Genre:         "Technology",
		OriginalPrice: "39.99",
		ListingPrice:  "22.00",
		Email:         "gopher.books@example.com",
	},
}

// EnsureSeedBooks inserts the demo catalog when the collection is empty and
// returns the number of listings inserted. A non-empty collection is left
// alone. Seeds are added one at a time; a failure stops the loop and keeps
// what was already inserted.
func (r *Repository) EnsureSeedBooks(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(r.seeds) == 0 {
		return 0, nil
	}
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count listings: %w", err)
	}
	if n != 0 {
		return 0, nil
	}
	added := 0
	for _, s := range r.seeds {
		if err := r.Add(ctx, r.fromSeed(s)); err != nil {
			return added, fmt.Errorf("seed %q: %w", s.BookTitle, err)
		}
		added++
	}
	slog.InfoContext(ctx, "listing: seeded demo books", "count", added)
	return added, nil
}

func (r *Repository) fromSeed(s Seed) *entity.BookListing {
	l := &entity.BookListing{
		ID:            entity.NewID(),
		BookName:      s.BookName,
		BookTitle:     s.BookTitle,
		Genre:         s.Genre,
		OriginalPrice: s.OriginalPrice,
		ListingPrice:  s.ListingPrice,
		Email:         s.Email,
		CreatedAt:     entity.Timestamp(r.now()),
	}
	if s.Image != "" {
		img := s.Image
		l.Image = &img
	}
	return l
}
