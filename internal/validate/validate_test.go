package validate

import (
	stderrors "errors"
	"math"
	"strings"
	"testing"

	"github.com/carbonware/bookexchange/internal/errors"
)

func TestIsNonEmptyString(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"text", "abc", true},
		{"padded", "  a  ", true},
		{"empty", "", false},
		{"whitespace", " \t\n", false},
		{"unicode whitespace", "\u00a0\u2003\ufeff\v", false},
		{"next line is not whitespace", "\u0085", true},
		{"number", 42, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNonEmptyString(tt.v); got != tt.want {
				t.Errorf("IsNonEmptyString(%#v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"a@b.co", true},
		{"  seller@example.com  ", true},
		{"first.last+tag@sub.example.org", true},
		{"not-an-email", false},
		{"", false},
		{"   ", false},
		{"a@b", false},
		{"a@@b.co", false},
		{"a b@c.de", false},
		{"@b.co", false},
		{"a@.co", false},
		{"a@b.", false},
		{"a\u00a0b@c.de", false},
		{"a\u2003b@c.de", false},
		{"a@b\ufeffc.de", false},
		{"a@b.c\vd", false},
		{"a@b.c\u2028d", false},
		{"\ufeff\u00a0a@b.co\u3000", true},
		{"a\u0085b@c.de", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidEmail(tt.in); got != tt.want {
				t.Errorf("IsValidEmail(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsValidPrice(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"0", true},
		{"12", true},
		{"12.50", true},
		{" 7 ", true},
		{".5", true},
		{"5.", true},
		{"1e3", true},
		{"+3", true},
		{"0x10", true},
		{"0b11", true},
		{"-0", true},
		{"", false},
		{"  ", false},
		{"-1", false},
		{"abc", false},
		{"12abc", false},
		{"Infinity", false},
		{"inf", false},
		{"NaN", false},
		{"1e400", false},
		{"1_000", false},
		{"0x1p4", false},
		{"-0x10", false},
		{"0x1fffffffffffffffff", true},
		{"0x+10", false},
		{"0x", false},
		{"0b102", false},
		{"0x" + strings.Repeat("f", 300), false},
		{"\u00a05\ufeff", true},
		{"5\u0085", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsValidPrice(tt.in); got != tt.want {
				t.Errorf("IsValidPrice(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"0x10", 16},
		{"0o17", 15},
		{"0B101", 5},
		{" 2.5e1 ", 25},
		{"0x1fffffffffffffffff", 0x1fffffffffffffffff},
		{"0b" + strings.Repeat("1", 70), math.Ldexp(1, 70) - 1},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if !ok || got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, %v, want %v", tt.in, got, ok, tt.want)
			}
		})
	}
}

func TestPriceNotExceed(t *testing.T) {
	tests := []struct {
		name     string
		original string
		listing  string
		want     bool
	}{
		{"no original", "", "100", true},
		{"listing above original", "50", "100", false},
		{"listing below original", "100", "50", true},
		{"equal", "50", "50", true},
		{"bad original", "abc", "50", false},
		{"bad listing", "100", "abc", false},
		{"empty listing", "100", "", false},
		{"both empty", "", "", false},
		{"whitespace original", "  ", "5", true},
		{"negative listing", "10", "-1", false},
		{"numeric compare", "9", "10", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PriceNotExceed(tt.original, tt.listing); got != tt.want {
				t.Errorf("PriceNotExceed(%q, %q) = %v, want %v", tt.original, tt.listing, got, tt.want)
			}
		})
	}
}

func TestListingInputValidate(t *testing.T) {
	valid := ListingInput{
		BookName:      "Dune",
		BookTitle:     "Dune",
		Genre:         "Science Fiction",
		OriginalPrice: "20",
		ListingPrice:  "12",
		Email:         "seller@example.com",
	}

	t.Run("valid", func(t *testing.T) {
		in := valid
		if err := in.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})

	tests := []struct {
		name   string
		mutate func(in *ListingInput)
		field  string
	}{
		{"missing name", func(in *ListingInput) { in.BookName = " " }, "bookName"},
		{"missing title", func(in *ListingInput) { in.BookTitle = "" }, "bookTitle"},
		{"missing price", func(in *ListingInput) { in.ListingPrice = "" }, "listingPrice"},
		{"bad price", func(in *ListingInput) { in.ListingPrice = "free" }, "listingPrice"},
		{"bad original", func(in *ListingInput) { in.OriginalPrice = "lots" }, "originalPrice"},
		{"above original", func(in *ListingInput) { in.ListingPrice = "25" }, "listingPrice"},
		{"bad email", func(in *ListingInput) { in.Email = "nope" }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate()
			if !stderrors.Is(err, errors.ErrValidationFailed) {
				t.Fatalf("Validate() = %v, want VALIDATION_FAILED", err)
			}
			var se *errors.StoreError
			if !stderrors.As(err, &se) {
				t.Fatalf("Validate() returned %T", err)
			}
			if _, ok := se.Details()[tt.field]; !ok {
				t.Errorf("details %v missing field %q", se.Details(), tt.field)
			}
		})
	}

	t.Run("optional fields", func(t *testing.T) {
		in := valid
		in.OriginalPrice = ""
		in.Email = ""
		if err := in.Validate(); err != nil {
			t.Errorf("Validate() = %v", err)
		}
	})
}
