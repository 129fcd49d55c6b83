package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

func echoExecutor(t *testing.T) *harmony.ToolExecutor {
	t.Helper()
	echo := harmony.ToolFunc{
		ToolSpec: harmony.ToolSpec{
			Name:        "echo",
			Description: "Echo a message",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"msg": map[string]any{"type": "string"}},
				"required":   []any{"msg"},
			},
		},
		Fn: func(_ context.Context, raw json.RawMessage) (harmony.ToolResult, error) {
			var args struct{ Msg string }
			if err := json.Unmarshal(raw, &args); err != nil {
				return harmony.ToolResult{}, err
			}
			return harmony.ToolResult{Model: "echo: " + args.Msg, Display: "## Echo\n" + args.Msg}, nil
		},
	}
	ex, err := harmony.NewToolExecutor([]harmony.Tool{echo})
	require.NoError(t, err)
	return ex
}

type harness struct {
	sess       *session
	out        *bytes.Buffer
	lines      chan string
	interrupts chan os.Signal
	done       chan error
}

func startSession(t *testing.T, provider harmony.Provider, md *glamour.TermRenderer) *harness {
	t.Helper()
	h := &harness{
		out:        &bytes.Buffer{},
		lines:      make(chan string),
		interrupts: make(chan os.Signal),
		done:       make(chan error, 1),
	}
	h.sess = newSession(sessionConfig{
		Provider:  provider,
		Executor:  echoExecutor(t),
		Model:     "gpt-oss",
		Root:      t.TempDir(),
		ExportDir: t.TempDir(),
		Out:       h.out,
		Markdown:  md,
		Now:       fixedNow,
	})
	go func() { h.done <- h.sess.Run(context.Background(), h.lines, h.interrupts) }()
	return h
}

func (h *harness) send(lines ...string) {
	for _, l := range lines {
		h.lines <- l
	}
}

func (h *harness) finish(t *testing.T) string {
	t.Helper()
	close(h.lines)
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not exit")
	}
	return h.out.String()
}

func TestTextTurn(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Script{Deltas: testutil.TextDeltas("Hi ", "there")})
	h := startSession(t, p, nil)
	h.send("hello")
	out := h.finish(t)

	assert.Contains(t, out, "Harmony CLI")
	assert.Contains(t, out, "Assistant:")
	assert.Contains(t, out, "Hi there")
	assert.Contains(t, out, "(complete)")
	assert.Contains(t, out, "Exiting.")

	require.Len(t, h.sess.history, 3)
	am, ok := h.sess.history[2].(harmony.AssistantMessage)
	require.True(t, ok)
	assert.Equal(t, "Hi there", am.Text())

	reqs := p.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].SystemPrompt, "Reasoning: high")
	dev := reqs[0].History[0].(harmony.UserMessage).Text()
	assert.True(t, strings.HasPrefix(dev, "# Instructions\n"))
	assert.Contains(t, dev, "type echo = (_: {")
}

func TestToolLoop(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Script{Deltas: testutil.CallDeltas(0, "c1", "echo", `{"msg":`, `"yo"}`)},
		testutil.Script{Deltas: testutil.TextDeltas("done")},
	)
	md, err := glamour.NewTermRenderer(glamour.WithStandardStyle("notty"))
	require.NoError(t, err)
	h := startSession(t, p, md)
	h.send("use the tool")
	out := h.finish(t)

	assert.Contains(t, out, "Calling Tool: echo(")
	assert.Contains(t, out, `{"msg":"yo"}`)
	assert.Contains(t, out, "Tool Results\n------------")
	assert.Contains(t, out, "Tool Result: echo (")
	assert.Contains(t, out, "yo")
	assert.Contains(t, out, "done")

	reqs := p.Requests()
	require.Len(t, reqs, 2)
	last := reqs[1].History[len(reqs[1].History)-1]
	tr, ok := last.(harmony.ToolResultMessage)
	require.True(t, ok)
	assert.Equal(t, "echo: yo", tr.Text())
	assert.Equal(t, "c1", tr.CallID)
}

func TestLineContinuation(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Script{Deltas: testutil.TextDeltas("ok")})
	h := startSession(t, p, nil)
	h.send(`first\`, "second")
	out := h.finish(t)

	assert.Contains(t, out, "... ")
	um := p.Requests()[0].History[1].(harmony.UserMessage)
	assert.Equal(t, "first\nsecond", um.Text())
}

func TestInterruptResponse(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Script{
		Deltas: append(testutil.TextDeltas("partial"), testutil.CallDeltas(0, "c1", "echo", `{"msg":`)...),
		Block:  true,
	})
	h := startSession(t, p, nil)
	h.send("go")
	<-p.Reached
	h.interrupts <- os.Interrupt
	out := h.finish(t)

	assert.Contains(t, out, "— interrupted —")
	assert.Contains(t, out, "(interrupted)")
	assert.NotContains(t, out, "Tool Result:")
	assert.NotContains(t, out, "Error:")

	am, ok := h.sess.history[len(h.sess.history)-1].(harmony.AssistantMessage)
	require.True(t, ok)
	assert.True(t, am.Interrupted)
	assert.Equal(t, "partial\n\n"+harmony.InterruptedNote, am.Text())
	assert.Empty(t, am.ToolCalls())
}

func TestInterruptIdleInput(t *testing.T) {
	h := startSession(t, testutil.NewScriptedProvider(), nil)
	h.send(`half\`)
	h.interrupts <- os.Interrupt
	h.send("exit")
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not exit")
	}
	out := h.out.String()
	assert.Contains(t, out, "Input interrupted. Press Ctrl+D or type 'exit' to quit.")
	assert.Len(t, h.sess.history, 1)
}

func TestTransportErrorKeepsREPL(t *testing.T) {
	p := testutil.NewScriptedProvider(
		testutil.Script{Err: errors.New("connection refused")},
		testutil.Script{Deltas: testutil.TextDeltas("recovered")},
	)
	h := startSession(t, p, nil)
	h.send("one", "two")
	out := h.finish(t)

	assert.Contains(t, out, "Error:")
	assert.Contains(t, out, "connection refused")
	assert.Contains(t, out, "recovered")
}

func TestExportAndReset(t *testing.T) {
	p := testutil.NewScriptedProvider(testutil.Script{Deltas: testutil.TextDeltas("answer")})
	h := startSession(t, p, nil)
	path := filepath.Join(t.TempDir(), "out", "chat.md")
	h.send("question", "/export md "+path, "/export json", "/export pdf", "/reset")
	out := h.finish(t)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "## You\n\nquestion")
	assert.Contains(t, string(data), "## Assistant\n\nanswer")

	jsonPath := filepath.Join(h.sess.ExportDir, "chat-20261018-120000.json")
	assert.FileExists(t, jsonPath)
	assert.Contains(t, out, "Saved transcript to")
	assert.Contains(t, out, "Format must be 'md' or 'json'.")
	assert.Contains(t, out, "Conversation cleared.")
	assert.Len(t, h.sess.history, 1)
}

func TestExitCommand(t *testing.T) {
	h := startSession(t, testutil.NewScriptedProvider(), nil)
	h.send("  EXIT ")
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("session did not exit")
	}
	assert.Contains(t, h.out.String(), "Exiting.")
}
