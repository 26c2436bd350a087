// Package mailto builds mailto: links for contacting sellers.
package mailto

import (
	"fmt"
	"strings"

	"github.com/carbonware/bookexchange/internal/entity"
	"github.com/carbonware/bookexchange/internal/validate"
)

// Params are the parts of a mailto link. Empty Subject and Body are omitted.
type Params struct {
	To      string
	Subject string
	Body    string
}

// Build returns mailto:<to>?<query>. The recipient is encoded like
// encodeURIComponent and the query like URLSearchParams, subject first. The
// "?" is always present, even when the query is empty.
func Build(p Params) string {
	var b strings.Builder
	b.WriteString("mailto:")
	b.WriteString(encodeComponent(p.To))
	b.WriteByte('?')
	sep := ""
	for _, kv := range [...][2]string{{"subject", p.Subject}, {"body", p.Body}} {
		if kv[1] == "" {
			continue
		}
		b.WriteString(sep)
		b.WriteString(formEncode(kv[0]))
		b.WriteByte('=')
		b.WriteString(formEncode(kv[1]))
		sep = "&"
	}
	return b.String()
}

// ForListing returns the link a buyer uses to contact the listing's seller.
// ok is false when the listing carries no usable email.
func ForListing(l *entity.BookListing) (link string, ok bool) {
	if l == nil || !validate.IsValidEmail(l.Email) {
		return "", false
	}
	title := l.BookTitle
	if title == "" {
		title = l.BookName
	}
	quoted := `"` + title + `"`
	return Build(Params{
		To:      validate.Trim(l.Email),
		Subject: "Interested in " + quoted,
		Body:    fmt.Sprintf("Hi, I saw your listing for %s at %s. Is it still available?", quoted, l.ListingPrice),
	}), true
}

const upperhex = "0123456789ABCDEF"

// encodeComponent leaves A-Z a-z 0-9 - _ . ! ~ * ' ( ) as is and
// percent-encodes every other UTF-8 byte.
func encodeComponent(s string) string {
	return escape(s, func(c byte) bool {
		return isAlnum(c) || strings.IndexByte("-_.!~*'()", c) >= 0
	}, false)
}

// formEncode is the application/x-www-form-urlencoded serializer: A-Z a-z
// 0-9 * - . _ are kept, space becomes '+', everything else is percent-encoded.
func formEncode(s string) string {
	return escape(s, func(c byte) bool {
		return isAlnum(c) || strings.IndexByte("*-._", c) >= 0
	}, true)
}

func escape(s string, keep func(byte) bool, spacePlus bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case keep(c):
			b.WriteByte(c)
		case c == ' ' && spacePlus:
			b.WriteByte('+')
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

func isAlnum(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9'
}
