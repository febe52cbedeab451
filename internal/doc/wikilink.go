package doc

import (
	"regexp"
	"strings"
)

// wikilinkPattern matches "[[target]]" or "[[target|display]]" tokens. No
// nesting is supported: the non-greedy match runs from the first "[[" to the
// first following "]]", and ExtractWikilinks keeps only the text after the
// last "[[" inside it, so the innermost span is the one used.
var wikilinkPattern = regexp.MustCompile(`\[\[(.*?)\]\]`)

// ExtractWikilinks scans body left-to-right for [[target]] tokens. A "|"
// inside a token splits display text from target; only the target (left
// side) is kept. Targets are trimmed, duplicates collapse to a set, and
// first-appearance order is preserved.
func ExtractWikilinks(body string) []string {
	matches := wikilinkPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		token := m[1]
		if open := strings.LastIndex(token, "[["); open >= 0 {
			token = token[open+2:]
		}
		if pipe := strings.IndexByte(token, '|'); pipe >= 0 {
			token = token[:pipe]
		}
		target := strings.TrimSpace(token)
		if target == "" || seen[target] {
			continue
		}
		seen[target] = true
		out = append(out, target)
	}
	return out
}
