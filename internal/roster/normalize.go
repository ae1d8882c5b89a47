package roster

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Jiří" -> "Jiri").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeName normalizes a roster name: trimmed, diacritics removed,
// interior whitespace collapsed. The legacy system stored names with
// inconsistent spacing and encodings.
func NormalizeName(name string) string {
	name = RemoveDiacritics(name)
	return strings.Join(strings.Fields(name), " ")
}
