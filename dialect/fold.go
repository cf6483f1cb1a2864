package dialect

import (
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold normalizes s for comparison: accents removed, lower case, and
// blank runs collapsed into one space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func containsFold(list []string, s string) bool {
	s = Fold(s)
	return slices.ContainsFunc(list, func(v string) bool { return Fold(v) == s })
}

func hasPrefixFold(prefixes []string, s string) bool {
	s = Fold(s)
	return slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(s, Fold(p)) })
}
