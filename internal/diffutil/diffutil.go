// Package diffutil renders unified diffs for CLI write previews, adapted
// from the teacher's internal/util difflib wrapper (internal/util/util.go).
package diffutil

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorCyan  = "\x1b[36m"
)

// Unified renders a unified diff between a node's previous and proposed
// content, used by the CLI to preview a write before it commits. name
// labels both sides of the diff header.
func Unified(before, after, name string, context int) string {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name,
		ToFile:   name + " (pending)",
		Context:  context,
	}
	text, err := difflib.GetUnifiedDiffString(d)
	if err != nil {
		return "(diff error: " + err.Error() + ")"
	}
	return text
}

// Colorize applies ANSI coloring to a unified diff's +/-/@@ lines, for
// terminal output when the caller isn't piping to a file.
func Colorize(diffText string) string {
	var sb strings.Builder
	lines := strings.Split(diffText, "\n")
	for i, l := range lines {
		if i == len(lines)-1 && l == "" {
			continue
		}
		switch {
		case strings.HasPrefix(l, "+"):
			sb.WriteString(colorGreen + l + colorReset + "\n")
		case strings.HasPrefix(l, "-"):
			sb.WriteString(colorRed + l + colorReset + "\n")
		case strings.HasPrefix(l, "@"):
			sb.WriteString(colorCyan + l + colorReset + "\n")
		default:
			sb.WriteString(l + "\n")
		}
	}
	return sb.String()
}
