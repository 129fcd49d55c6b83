package truncate

import (
	"strings"
)

var languageAliases = map[string]string{
	"python":    "python",
	"bash":      "bash",
	"sh":        "bash",
	"shell":     "bash",
	"diff":      "diff",
	"json":      "json",
	"text":      "text",
	"txt":       "text",
	"plain":     "text",
	"plaintext": "text",
}

// NormalizeLanguage maps a code block language to one of python, bash,
// diff, json or text.
func NormalizeLanguage(lang string) string {
	if l, ok := languageAliases[strings.ToLower(strings.TrimSpace(lang))]; ok {
		return l
	}
	return "text"
}

// CodeBlock wraps body in a fenced block whose fence is longer than any
// backtick run inside body.
func CodeBlock(body, lang string) string {
	fence := strings.Repeat("`", max(3, longestBacktickRun(body)+1))
	if !strings.HasSuffix(body, "\n") {
		body += "\n"
	}
	return fence + NormalizeLanguage(lang) + "\n" + body + fence + "\n"
}

// ErrorDoc renders msg as a markdown error document.
func ErrorDoc(msg string) string {
	return "## Error\n" + msg
}

func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}
