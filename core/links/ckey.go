package links

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeCkey folds a BYOND key into its canonical ckey form: accents are
// stripped, letters lowercased, and everything outside [a-z0-9] dropped.
func NormalizeCkey(key string) (string, error) {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), key)
	if err != nil {
		folded = key
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	if b.Len() == 0 {
		return "", ErrInvalidCkey
	}
	if b.Len() > MaxCkeyLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidCkey, MaxCkeyLength)
	}
	return b.String(), nil
}
