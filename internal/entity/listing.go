package entity

import (
	"encoding/json"
	"time"
)

// BookListing is a single book offered for sale.
type BookListing struct {
	ID            string    `json:"id" jsonschema:"description=UUID primary key"`
	Image         *string   `json:"image" jsonschema:"description=Cover image URL or data URI, null when absent"`
	BookName      string    `json:"bookName" jsonschema:"description=Short name of the book"`
	BookTitle     string    `json:"bookTitle" jsonschema:"description=Full title of the book"`
	Genre         string    `json:"genre" jsonschema:"description=Genre label"`
	OriginalPrice string    `json:"originalPrice,omitempty" jsonschema:"description=Price the seller paid, optional"`
	ListingPrice  string    `json:"listingPrice" jsonschema:"description=Asking price"`
	Email         string    `json:"email,omitempty" jsonschema:"description=Seller contact email, optional"`
	CreatedAt     time.Time `json:"createdAt" jsonschema:"description=Creation time (ISO-8601)"`
}

// MarshalJSON writes CreatedAt with FormatTimestamp.
func (b BookListing) MarshalJSON() ([]byte, error) {
	type plain BookListing
	return json.Marshal(struct {
		plain
		CreatedAt string `json:"createdAt"`
	}{plain(b), FormatTimestamp(b.CreatedAt)})
}

// Clone returns a deep copy of the listing.
func (b *BookListing) Clone() *BookListing {
	c := *b
	if b.Image != nil {
		img := *b.Image
		c.Image = &img
	}
	return &c
}

// GetID returns the listing's ID.
func (b *BookListing) GetID() string {
	return b.ID
}

// Validate checks that the listing satisfies the collection invariants.
func (b *BookListing) Validate() error {
	if b.ID == "" {
		return errIDRequired
	}
	if b.ListingPrice == "" {
		return errListingPriceRequired
	}
	return nil
}

// Equal reports whether two listings hold the same values.
func (b *BookListing) Equal(o *BookListing) bool {
	if b == nil || o == nil {
		return b == o
	}
	if (b.Image == nil) != (o.Image == nil) || (b.Image != nil && *b.Image != *o.Image) {
		return false
	}
	return b.ID == o.ID &&
		b.BookName == o.BookName &&
		b.BookTitle == o.BookTitle &&
		b.Genre == o.Genre &&
		b.OriginalPrice == o.OriginalPrice &&
		b.ListingPrice == o.ListingPrice &&
		b.Email == o.Email &&
		b.CreatedAt.Equal(o.CreatedAt)
}
