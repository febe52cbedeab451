package schema

import "strings"

// Sanitize maps an arbitrary metadata key (or type name) to a safe SQL
// identifier fragment: lowercase, non-alphanumerics become '_', and a
// leading digit is prefixed with '_' (spec.md 4.4, "Field-name policy").
func Sanitize(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(key) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		out = "_"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}
