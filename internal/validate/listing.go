package validate

import (
	"slices"
	"strings"

	storeerrors "github.com/carbonware/bookexchange/internal/errors"
)

// ListingInput is the raw content of the "sell a book" form.
type ListingInput struct {
	Image         string `json:"image,omitempty"`
	BookName      string `json:"bookName"`
	BookTitle     string `json:"bookTitle"`
	Genre         string `json:"genre"`
	OriginalPrice string `json:"originalPrice,omitempty"`
	ListingPrice  string `json:"listingPrice"`
	Email         string `json:"email,omitempty"`
}

// Validate checks every field and returns a VALIDATION_FAILED error whose
// details map each offending field to a message.
func (in *ListingInput) Validate() error {
	fields := map[string]any{}
	if !IsNonEmptyString(in.BookName) {
		fields["bookName"] = "book name is required"
	}
	if !IsNonEmptyString(in.BookTitle) {
		fields["bookTitle"] = "book title is required"
	}
	if !IsNonEmptyString(in.ListingPrice) {
		fields["listingPrice"] = "listing price is required"
	} else if !IsValidPrice(in.ListingPrice) {
		fields["listingPrice"] = "listing price must be a non-negative number"
	}
	if IsNonEmptyString(in.OriginalPrice) && !IsValidPrice(in.OriginalPrice) {
		fields["originalPrice"] = "original price must be a non-negative number"
	}
	if _, bad := fields["listingPrice"]; !bad && !PriceNotExceed(in.OriginalPrice, in.ListingPrice) {
		if _, bad := fields["originalPrice"]; !bad {
			fields["listingPrice"] = "listing price cannot exceed the original price"
		}
	}
	if IsNonEmptyString(in.Email) && !IsValidEmail(in.Email) {
		fields["email"] = "email is not valid"
	}
	if len(fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	slices.Sort(names)
	return storeerrors.ValidationFailed("invalid listing: " + strings.Join(names, ", ")).WithDetails(fields)
}
