package normalization

import (
	"strings"
	"unicode"
)

// NormalizeTitle folds a game title into its comparison form: lowercase,
// trimmed, punctuation stripped, runs of whitespace collapsed. Store titles
// and generator output rarely agree on trademark symbols or casing.
func NormalizeTitle(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(input)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// TitlesMatch reports whether two titles agree after normalization.
func TitlesMatch(a, b string) bool {
	na, nb := NormalizeTitle(a), NormalizeTitle(b)
	return na != "" && na == nb
}
