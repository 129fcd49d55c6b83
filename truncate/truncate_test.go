package truncate

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	return b.String()
}

func TestOutputUnderBudget(t *testing.T) {
	got := Output("a\nb\nc\n", Budget{MaxLines: 5, MaxLineLength: 10})
	assert.Equal(t, "a\nb\nc", got)
}

func TestOutputDropsLinesWithDefaultNote(t *testing.T) {
	got := Output(numberedLines(10), Budget{MaxLines: 3, MaxLineLength: 100})
	want := "line 1\nline 2\nline 3\n... (output truncated, 7 more lines hidden) ..."
	assert.Equal(t, want, got)
}

func TestOutputCustomNote(t *testing.T) {
	got := Output(numberedLines(4), Budget{MaxLines: 1, MaxLineLength: 100, Note: DisplayNote})
	assert.Equal(t, "line 1\n. 3 lines hidden .", got)
}

func TestOutputCutsLongLines(t *testing.T) {
	long := strings.Repeat("x", 50)
	got := Output("short\n"+long, Budget{MaxLines: 10, MaxLineLength: 20})
	lines := strings.Split(got, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "short", lines[0])
	assert.Equal(t, strings.Repeat("x", 20)+LineTruncatedMarker, lines[1])
}

func TestOutputCutsOnRuneBoundary(t *testing.T) {
	got := Output(strings.Repeat("é", 10), Budget{MaxLines: 1, MaxLineLength: 4})
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "éééé"+LineTruncatedMarker, got)
}

func TestOutputProperties(t *testing.T) {
	for _, tc := range []struct {
		lines, maxLines, width int
	}{
		{0, 5, 10}, {5, 5, 10}, {6, 5, 10}, {200, 120, 400}, {30, 1, 3},
	} {
		t.Run(fmt.Sprintf("%d/%d", tc.lines, tc.maxLines), func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < tc.lines; i++ {
				b.WriteString(strings.Repeat("y", i%37))
				b.WriteString("\n")
			}
			got := Output(b.String(), Budget{MaxLines: tc.maxLines, MaxLineLength: tc.width})
			outLines := SplitLines(got)

			if tc.lines > tc.maxLines {
				note := fmt.Sprintf("... (output truncated, %d more lines hidden) ...", tc.lines-tc.maxLines)
				require.Equal(t, note, outLines[len(outLines)-1])
				outLines = outLines[:len(outLines)-1]
				assert.Len(t, outLines, tc.maxLines)
			} else {
				assert.NotContains(t, got, "more lines hidden")
			}
			for _, l := range outLines {
				assert.LessOrEqual(t, utf8.RuneCountInString(l), tc.width+len(LineTruncatedMarker))
			}
		})
	}
}

func TestDisplayUnderBudgetUnchanged(t *testing.T) {
	doc := "## Command Successful\n```bash\nok\n```\n"
	assert.Equal(t, doc, Display(doc, 25))
}

func TestDisplayClosesOpenFence(t *testing.T) {
	doc := "## Header\n### STDOUT\n```bash\n" + numberedLines(40) + "```\n"
	got := Display(doc, 10)

	lines := SplitLines(got)
	assert.Empty(t, openFence(lines))
	assert.Equal(t, "```", lines[10])
	assert.True(t, strings.HasSuffix(got, "\n\n... 33 lines hidden ...\n"))
}

func TestDisplayEvenFencesNotPadded(t *testing.T) {
	doc := "```\na\n```\n" + numberedLines(10)
	got := Display(doc, 4)
	assert.Equal(t, "```\na\n```\nline 1\n\n... 9 lines hidden ...\n", got)
}

func TestDisplayBalancesMalformedShortDoc(t *testing.T) {
	got := Display("## Error\n```text\nboom", 25)
	assert.Equal(t, "## Error\n```text\nboom\n```\n", got)
}

func TestDisplayNeverOddFences(t *testing.T) {
	body := CodeBlock(numberedLines(30), "bash") + CodeBlock("x", "text") + CodeBlock(numberedLines(7), "diff")
	for n := 1; n < 50; n++ {
		got := Display(body, n)
		assert.Empty(t, openFence(SplitLines(got)), "n=%d", n)
	}
}

func TestDisplayClosesLongFence(t *testing.T) {
	body := CodeBlock("```\n"+numberedLines(20), "text")
	require.True(t, strings.HasPrefix(body, "````text\n"))

	got := Display(body, 5)
	lines := SplitLines(got)
	assert.Equal(t, "````", lines[5])
	assert.Empty(t, openFence(lines))

	got = Display("`````json\n{}\n```", 25)
	assert.Equal(t, "`````json\n{}\n```\n`````\n", got)
}

func TestDisplayNegativeBudget(t *testing.T) {
	doc := "## Error\n```text\nboom\n```\n"
	var got string
	require.NotPanics(t, func() { got = Display(doc, -1) })
	assert.Equal(t, "\n\n... 4 lines hidden ...\n", got)

	assert.Equal(t, "a\nb", Output("a\nb", Budget{MaxLines: -1, MaxLineLength: -5}))
}

func TestModelView(t *testing.T) {
	b := DefaultBudgets()
	assert.Equal(t, "## Error\nboom\n", ModelView("## Error\nboom\n", b))

	huge := "## Error\n" + strings.Repeat("x", 200_000)
	got := ModelView(huge, b)
	assert.LessOrEqual(t, utf8.RuneCountInString(got), b.Model.MaxLineLength+len(LineTruncatedMarker)+len("## Error\n"))
	assert.Contains(t, got, LineTruncatedMarker)

	b.Model.MaxLineLength = 0
	got = ModelView(huge, b)
	assert.True(t, strings.HasPrefix(got, "## Error\nxxx"))
	assert.Contains(t, got, "_MODEL NOTE: Result automatically truncated")
	assert.Less(t, utf8.RuneCountInString(got), b.ModelMaxChars+200)
}

func TestCapModel(t *testing.T) {
	doc := strings.Repeat("a", 30)
	got, cut := CapModel(doc, 10, "\n_NOTE_")
	assert.True(t, cut)
	assert.Equal(t, strings.Repeat("a", 10)+"\n_NOTE_", got)

	got, cut = CapModel("short", 10, "\n_NOTE_")
	assert.False(t, cut)
	assert.Equal(t, "short", got)
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, SplitLines(""))
	assert.Equal(t, []string{"a", "b"}, SplitLines("a\r\nb\n"))
	assert.Equal(t, []string{"a", "", "b"}, SplitLines("a\n\nb"))
	assert.Equal(t, []string{""}, SplitLines("\n"))
}
