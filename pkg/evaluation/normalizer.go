package evaluation

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalizer canonicalizes text before metric comparison. The hosted
// platform plugs in a script transliterator here (Tibetan Unicode to
// Wylie); the engine treats the transform as opaque.
type Normalizer func(string) string

// DefaultNormalizer applies Unicode NFC and collapses runs of whitespace,
// so trivially different encodings of the same text score identically.
func DefaultNormalizer(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
