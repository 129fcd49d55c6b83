package transcript

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harmony "github.com/buchuleaf/harmony-cli"
)

var when = time.Date(2026, 10, 18, 9, 30, 5, 0, time.UTC)

func sampleHistory() []harmony.Message {
	return []harmony.Message{
		harmony.NewUserMessage("list files"),
		harmony.AssistantMessage{Parts: []harmony.Part{
			harmony.ThinkingPart{Thinking: "hidden"},
			harmony.ToolCallPart{CallID: "call_1", Name: "exec", Arguments: `{"kind":"shell","code":"ls"}`},
		}},
		harmony.ToolResultMessage{
			CallID:  "call_1",
			Name:    "exec",
			Parts:   []harmony.Part{harmony.TextPart{Text: "## Command Successful\n```text\na.go\n```"}},
			Display: "display only",
		},
		harmony.AssistantMessage{Parts: []harmony.Part{harmony.TextPart{Text: "There is one file."}}},
	}
}

func TestEntries(t *testing.T) {
	got := Entries("sys", sampleHistory())
	want := []Entry{
		{Role: "system", Content: "sys"},
		{Role: "user", Content: "list files"},
		{Role: "assistant", ToolCalls: []ToolCall{{ID: "call_1", Type: "function", Function: FunctionCall{Name: "exec", Arguments: `{"kind":"shell","code":"ls"}`}}}},
		{Role: "tool", Name: "exec", ToolCallID: "call_1", Content: "## Command Successful\n```text\na.go\n```"},
		{Role: "assistant", Content: "There is one file."},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteMarkdown(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteMarkdown(&b, Entries("sys", sampleHistory()), when))
	out := b.String()

	assert.True(t, strings.HasPrefix(out, "# Chat Transcript (2026-10-18T09:30:05)\n"))
	assert.Contains(t, out, "## System\n\n```text\nsys\n```\n")
	assert.Contains(t, out, "## You\n\nlist files\n")
	assert.Contains(t, out, "## Assistant\n\n_(tool call only)_\n")
	assert.Contains(t, out, "<details><summary>Tool Calls (raw)</summary>")
	assert.Contains(t, out, "### Tool Result: exec\n\n````markdown\n## Command Successful")
	assert.Contains(t, out, "There is one file.")
	assert.NotContains(t, out, "display only")
	assert.NotContains(t, out, "hidden")
}

func TestWriteMarkdownEmptyUser(t *testing.T) {
	var b strings.Builder
	require.NoError(t, WriteMarkdown(&b, []Entry{{Role: "user", Content: "  "}}, when))
	assert.Contains(t, b.String(), "_(empty)_")
}

func TestParseCommand(t *testing.T) {
	f, p, err := ParseCommand("/export MD")
	require.NoError(t, err)
	assert.Equal(t, Markdown, f)
	assert.Empty(t, p)

	f, p, err = ParseCommand("/export json out/chat.json")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)
	assert.Equal(t, "out/chat.json", p)

	_, _, err = ParseCommand("/export")
	assert.ErrorIs(t, err, ErrUsage)
	_, _, err = ParseCommand("/export pdf")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestDefaultPath(t *testing.T) {
	assert.Equal(t, filepath.Join("dir", "chat-20261018-093005.md"), DefaultPath("dir", Markdown, when))
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.json")
	require.NoError(t, Export(JSON, path, "sys", sampleHistory(), when))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var entries []Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 5)
	assert.Equal(t, "call_1", entries[3].ToolCallID)
	assert.Contains(t, string(data), "```text", "HTML escaping is off")
}

func TestExportBadFormat(t *testing.T) {
	err := Export("pdf", filepath.Join(t.TempDir(), "x"), "", nil, when)
	assert.ErrorIs(t, err, ErrFormat)
}
