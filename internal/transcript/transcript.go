// Package transcript exports a conversation as markdown or JSON.
package transcript

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	harmony "github.com/buchuleaf/harmony-cli"
)

// Format is an export format.
type Format string

const (
	Markdown Format = "md"
	JSON     Format = "json"
)

var (
	ErrUsage  = errors.New("Usage: /export md|json [optional/path]")
	ErrFormat = errors.New("Format must be 'md' or 'json'.")
)

// Entry is one message in chat-completions wire shape.
type Entry struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is the wire shape of an assistant tool call.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Entries flattens the system prompt and history. Tool results carry
// their model rendering.
func Entries(system string, history []harmony.Message) []Entry {
	var out []Entry
	if system != "" {
		out = append(out, Entry{Role: string(harmony.RoleSystem), Content: system})
	}
	for _, msg := range history {
		switch m := msg.(type) {
		case harmony.UserMessage:
			out = append(out, Entry{Role: string(harmony.RoleUser), Content: m.Text()})
		case harmony.AssistantMessage:
			e := Entry{Role: string(harmony.RoleAssistant), Content: m.Text()}
			for _, tc := range m.ToolCalls() {
				e.ToolCalls = append(e.ToolCalls, ToolCall{
					ID:       tc.CallID,
					Type:     "function",
					Function: FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
				})
			}
			out = append(out, e)
		case harmony.ToolResultMessage:
			out = append(out, Entry{
				Role:       string(harmony.RoleTool),
				Content:    m.Text(),
				Name:       m.Name,
				ToolCallID: m.CallID,
			})
		}
	}
	return out
}

// WriteJSON writes entries as an indented JSON array.
func WriteJSON(w io.Writer, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteMarkdown renders entries as a readable transcript.
func WriteMarkdown(w io.Writer, entries []Entry, now time.Time) error {
	var lines []string
	lines = append(lines, fmt.Sprintf("# Chat Transcript (%s)\n", now.Format("2006-01-02T15:04:05")))
	for _, e := range entries {
		switch e.Role {
		case "system":
			lines = append(lines, "## System\n", fenced(e.Content, "text"))
		case "user":
			content := e.Content
			if strings.TrimSpace(content) == "" {
				content = "_(empty)_"
			}
			lines = append(lines, "## You\n", content, "")
		case "assistant":
			content := e.Content
			if content == "" {
				content = "_(tool call only)_"
			}
			lines = append(lines, "## Assistant\n", content, "")
			if len(e.ToolCalls) > 0 {
				raw, err := json.MarshalIndent(e.ToolCalls, "", "  ")
				if err != nil {
					return err
				}
				lines = append(lines, "<details><summary>Tool Calls (raw)</summary>\n\n```json", string(raw), "```\n</details>\n")
			}
		case "tool":
			title := "Tool Result"
			if e.Name != "" {
				title += ": " + e.Name
			}
			lines = append(lines, "### "+title+"\n", fenced(e.Content, "markdown"))
		default:
			role := strings.ToUpper(e.Role)
			if role == "" {
				role = "UNKNOWN"
			}
			lines = append(lines, "## "+role+"\n", fenced(e.Content, "text"))
		}
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

// fenced wraps content in a fence longer than any backtick run inside it.
func fenced(content, lang string) string {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	return fence + lang + "\n" + content + "\n" + fence + "\n"
}

// ParseCommand parses "/export md|json [path]".
func ParseCommand(line string) (Format, string, error) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", "", ErrUsage
	}
	f := Format(strings.ToLower(parts[1]))
	if f != Markdown && f != JSON {
		return "", "", ErrFormat
	}
	path := ""
	if len(parts) >= 3 {
		path = parts[2]
	}
	return f, path, nil
}

// DefaultPath returns dir/chat-YYYYMMDD-HHMMSS.<format>.
func DefaultPath(dir string, f Format, now time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("chat-%s.%s", now.Format("20060102-150405"), f))
}

// Export writes the conversation to path, creating parent directories.
func Export(f Format, path, system string, history []harmony.Message, now time.Time) error {
	entries := Entries(system, history)
	var buf bytes.Buffer
	var err error
	switch f {
	case Markdown:
		err = WriteMarkdown(&buf, entries, now)
	case JSON:
		err = WriteJSON(&buf, entries)
	default:
		return ErrFormat
	}
	if err != nil {
		return fmt.Errorf("render transcript: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
