// Package truncate renders bounded views of tool output.
//
// Every tool result is rendered twice: once for the model (generous budget)
// and once for the operator's screen (tight budget). Both views go through
// the same primitives so budgets stay configuration.
package truncate

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// LineTruncatedMarker is appended to lines cut at the line-length budget.
	LineTruncatedMarker = " ... (line truncated) ..."

	// DefaultNote is used when a Budget has no Note.
	DefaultNote = "... (output truncated, {omitted_lines} more lines hidden) ..."

	// DisplayNote is the compact note used for operator views.
	DisplayNote = ". {omitted_lines} lines hidden ."

	// CapNote is formatted with the cap and the composed length when
	// ModelView cuts a document.
	CapNote = "\n_MODEL NOTE: Result automatically truncated to protect the context window (kept first %d of %d chars)._\n"

	omittedPlaceholder = "{omitted_lines}"
)

// Budget bounds a single body of text.
type Budget struct {
	MaxLines      int    `yaml:"max_lines"`
	MaxLineLength int    `yaml:"max_line_length"`
	Note          string `yaml:"note,omitempty"`
}

// Output keeps the first b.MaxLines lines of text, cuts kept lines longer
// than b.MaxLineLength runes, and appends a note with the number of dropped
// lines. The omitted count only reflects the line-count step. A zero or
// negative limit disables that step.
func Output(text string, b Budget) string {
	lines := SplitLines(text)

	note := ""
	if b.MaxLines > 0 && len(lines) > b.MaxLines {
		omitted := len(lines) - b.MaxLines
		lines = lines[:b.MaxLines]
		tmpl := b.Note
		if tmpl == "" {
			tmpl = DefaultNote
		}
		note = "\n" + strings.ReplaceAll(tmpl, omittedPlaceholder, strconv.Itoa(omitted))
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = cutLine(line, b.MaxLineLength)
	}
	return strings.Join(out, "\n") + note
}

// Display trims an assembled markdown document to maxLines lines. A cut
// inside a fenced block gets a closing fence as long as the opening one,
// and the number of hidden lines is reported at the end.
func Display(doc string, maxLines int) string {
	maxLines = max(maxLines, 0)
	lines := SplitLines(doc)
	if len(lines) <= maxLines {
		if fence := openFence(lines); fence != "" {
			return strings.TrimRight(doc, "\n") + "\n" + fence + "\n"
		}
		return doc
	}

	kept := append([]string(nil), lines[:maxLines]...)
	if fence := openFence(kept); fence != "" {
		kept = append(kept, fence)
	}
	hidden := len(lines) - maxLines
	return strings.Join(kept, "\n") + "\n\n... " + strconv.Itoa(hidden) + " lines hidden ...\n"
}

// ModelView bounds doc for the model: the Model line budget first, then
// the character cap on the composed result. A trailing newline survives.
func ModelView(doc string, b Budgets) string {
	out := Output(doc, b.Model)
	if strings.HasSuffix(doc, "\n") && !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	if fence := openFence(SplitLines(out)); fence != "" {
		out = strings.TrimRight(out, "\n") + "\n" + fence + "\n"
	}
	n := utf8.RuneCountInString(out)
	capped, _ := CapModel(out, b.ModelMaxChars, fmt.Sprintf(CapNote, b.ModelMaxChars, n))
	return capped
}

// CapModel cuts doc to maxChars characters and appends note when it is
// longer. It reports whether a cut happened.
func CapModel(doc string, maxChars int, note string) (string, bool) {
	if maxChars <= 0 || utf8.RuneCountInString(doc) <= maxChars {
		return doc, false
	}
	return PrefixRunes(doc, maxChars) + note, true
}

// PrefixRunes returns the first n runes of s.
func PrefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// SplitLines splits text on line boundaries. CRLF and lone CR count as
// breaks and a trailing newline does not produce an empty last line.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

// fenceRun returns the length of the backtick fence that starts line, or 0
// when the line is not a fence.
func fenceRun(line string) int {
	t := strings.TrimSpace(line)
	n := 0
	for n < len(t) && t[n] == '`' {
		n++
	}
	if n < 3 {
		return 0
	}
	return n
}

// openFence returns the fence that closes the block left open at the end
// of lines, or "" when every block is closed. A closing fence must be at
// least as long as its opener and carry no info string.
func openFence(lines []string) string {
	open := 0
	for _, l := range lines {
		n := fenceRun(l)
		switch {
		case n == 0:
		case open == 0:
			open = n
		case n >= open && strings.TrimSpace(strings.TrimSpace(l)[n:]) == "":
			open = 0
		}
	}
	return strings.Repeat("`", open)
}

func cutLine(line string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(line) <= limit {
		return line
	}
	return PrefixRunes(line, limit) + LineTruncatedMarker
}
