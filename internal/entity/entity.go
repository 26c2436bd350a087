// Package entity defines the records stored by the listing and sponsor stores.
package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	errIDRequired           = errors.New("id is required")
	errListingPriceRequired = errors.New("listing price is required")
	errNameRequired         = errors.New("name is required")
)

// NewID returns a new random UUID string.
func NewID() string {
	return uuid.NewString()
}

// TimestampLayout is the serialized form of record timestamps, the one
// produced by JavaScript's Date.toISOString.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// FormatTimestamp returns t in UTC with exactly three fractional digits.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Timestamp normalizes t the way records store it: UTC, millisecond precision.
//
// It matches the resolution of an ISO-8601 string so a stored record compares
// equal to the value it was created from.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
