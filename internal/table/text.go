package table

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical folds text for matching: accents removed, lower-cased,
// whitespace trimmed and collapsed to single spaces.
func Canonical(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// CanonicalColumn folds a column header: Canonical, then spaces and dashes
// become underscores.
func CanonicalColumn(s string) string {
	c := Canonical(s)
	return strings.NewReplacer(" ", "_", "-", "_").Replace(c)
}
