// Package textfold normalizes human-entered text for comparison: accent
// removal and caseless matching of French labels and headers.
package textfold

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var ligatures = strings.NewReplacer("œ", "oe", "Œ", "OE", "æ", "ae", "Æ", "AE")

// Accents strips combining marks, so "Élève" becomes "Eleve". Ligatures are
// spelled out.
func Accents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, ligatures.Replace(s))
	if err != nil {
		return s
	}
	return out
}

// Key returns the caseless, whitespace-trimmed form of s. Accents are kept:
// "Élève" and "élève" share a key, "Eleve" does not.
func Key(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}

// Equal reports whether a and b are the same text ignoring case and
// surrounding whitespace.
func Equal(a, b string) bool {
	return Key(a) == Key(b)
}

// EqualNoAccents is Equal after accent removal: "peut-etre" matches
// "Peut-être".
func EqualNoAccents(a, b string) bool {
	return Key(Accents(a)) == Key(Accents(b))
}
