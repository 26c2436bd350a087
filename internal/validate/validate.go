// Package validate holds the checks applied to listing form input.
//
// All functions are pure and total: they never panic and never return an
// error, only a verdict.
package validate

import (
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// emailRE is deliberately permissive: something@something.something with no
// whitespace and a single @. Whitespace is the JavaScript set: ASCII
// whitespace including \v, Unicode separators and the BOM.
var emailRE = regexp.MustCompile(`^[^\s\x0B\p{Z}\x{FEFF}@]+@[^\s\x0B\p{Z}\x{FEFF}@]+\.[^\s\x0B\p{Z}\x{FEFF}@]+$`)

// isSpace matches the characters JavaScript's String.prototype.trim removes.
// unicode.IsSpace differs: it includes U+0085 and excludes U+FEFF.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\uFEFF':
		return true
	}
	return unicode.Is(unicode.Z, r)
}

// Trim removes leading and trailing whitespace as JavaScript's trim does.
func Trim(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// IsNonEmptyString reports whether v is a string with non-whitespace content.
func IsNonEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && Trim(s) != ""
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	if !IsNonEmptyString(s) {
		return false
	}
	return emailRE.MatchString(Trim(s))
}

// IsValidPrice reports whether s is a finite, non-negative number.
func IsValidPrice(s string) bool {
	if !IsNonEmptyString(s) {
		return false
	}
	n, ok := ParseNumber(s)
	return ok && n >= 0
}

// PriceNotExceed reports whether the listing price is at most the original
// price. An empty original price means there is nothing to compare against.
func PriceNotExceed(original, listing string) bool {
	if !IsNonEmptyString(listing) {
		return false
	}
	if !IsNonEmptyString(original) {
		return true
	}
	if !IsValidPrice(original) || !IsValidPrice(listing) {
		return false
	}
	op, _ := ParseNumber(original)
	lp, _ := ParseNumber(listing)
	return lp <= op
}

// ParseNumber converts s the way a browser form value is coerced to a number:
// surrounding whitespace is ignored, decimal and exponent notation are
// accepted, as are unsigned 0x, 0o and 0b integer literals. ok is false for
// anything else, including NaN and infinities.
func ParseNumber(s string) (n float64, ok bool) {
	s = Trim(s)
	if s == "" || strings.ContainsRune(s, '_') {
		return 0, false
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			return parseRadix(s[2:], base)
		}
	}
	// ParseFloat also understands "Inf", "NaN" and hex floats; none of them
	// are prices.
	lower := strings.ToLower(s)
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.Contains(lower, "x") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// parseRadix parses the digits of an integer literal of any length, rounding
// to the nearest float64. Literals too large for a float64 are not finite.
func parseRadix(digits string, base int) (float64, bool) {
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return 0, false
	}
	i, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, false
	}
	f, _ := new(big.Float).SetInt(i).Float64()
	if math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
