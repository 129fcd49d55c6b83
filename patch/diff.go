package patch

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// unifiedDiff renders a three-line-context unified diff between two line
// slices. Identical inputs yield "".
func unifiedDiff(before, after []string, from, to string) string {
	out, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(before),
		B:        withNewlines(after),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
	if err != nil {
		return ""
	}
	return strings.TrimRight(out, "\n")
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}
