package truncate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeBlockDefaultFence(t *testing.T) {
	assert.Equal(t, "```bash\nls\n```\n", CodeBlock("ls", "sh"))
	assert.Equal(t, "```text\nx\n```\n", CodeBlock("x\n", "rust"))
}

func TestCodeBlockOutgrowsInnerFences(t *testing.T) {
	body := "before\n````go\ncode\n````\nafter"
	got := CodeBlock(body, "text")
	assert.True(t, strings.HasPrefix(got, "`````text\n"))
	assert.True(t, strings.HasSuffix(got, "\n`````\n"))
}

func TestNormalizeLanguage(t *testing.T) {
	cases := map[string]string{
		"":          "text",
		"Python":    "python",
		"shell":     "bash",
		" sh ":      "bash",
		"plaintext": "text",
		"txt":       "text",
		"json":      "json",
		"diff":      "diff",
		"yaml":      "text",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeLanguage(in), in)
	}
}

func TestBudgetsWithDefaults(t *testing.T) {
	b := Budgets{Model: Budget{MaxLines: 7}}.WithDefaults()
	assert.Equal(t, 7, b.Model.MaxLines)
	assert.Equal(t, 400, b.Model.MaxLineLength)
	assert.Equal(t, DisplayNote, b.Display.Note)
	assert.Equal(t, 25000, b.ModelMaxChars)
	assert.Equal(t, 12, b.MaxPatchSections)
}
