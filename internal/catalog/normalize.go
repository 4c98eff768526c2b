package catalog

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalize reduces any stored status value to the canonical token shape:
// trimmed, lowercased, with every run of non-alphanumeric characters collapsed
// into a single underscore. Empty or missing input normalizes to "".
//
// Normalization is total: unparseable input simply produces a token that then
// fails catalog lookup. Applying Normalize twice yields the same result as
// applying it once.
func Normalize(value any) string {
	if value == nil {
		return ""
	}
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case fmt.Stringer:
		raw = v.String()
	default:
		raw = fmt.Sprint(v)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	pendingSep := false
	for _, r := range strings.ToLower(raw) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep {
				b.WriteByte('_')
				pendingSep = false
			}
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if pendingSep {
		b.WriteByte('_')
	}
	return b.String()
}
