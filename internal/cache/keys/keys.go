// Package keys builds deterministic cache keys for geocoding results and tile descriptors.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const maxTextLen = 96

// NormalizeQuery is the identity used for geocoding lookups.
func NormalizeQuery(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Geocode returns "geocode:<readable>:q=<xxhash>"; the readable part is
// truncated, the hash covers the full normalized query.
func Geocode(text string) string {
	q := NormalizeQuery(text)
	safe := sanitizeForKey(collapseASCIIWhitespace(q))
	if len(safe) > maxTextLen {
		safe = safe[:maxTextLen]
	}
	return fmt.Sprintf("geocode:%s:q=%016x", safe, xxhash.Sum64String(q))
}

// Tile keys a tile descriptor by the encoded expression and visualization.
func Tile(expression, vis []byte) string {
	d := xxhash.New()
	_, _ = d.Write(expression)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(vis)
	return fmt.Sprintf("tile:%016x", d.Sum64())
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// Any other rune (including non-ASCII) becomes '-'
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

// converts any run of ASCII whitespace to a single space.
func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}
