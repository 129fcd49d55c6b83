package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/truncate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestAnalyzeShellCommand(t *testing.T) {
	tests := []struct {
		cmd  string
		want ShellTraits
	}{
		{"ls -la", ShellTraits{BulkListing: true}},
		{"ls -lR src", ShellTraits{RecursiveLS: true}},
		{"ls --recursive", ShellTraits{RecursiveLS: true}},
		{"ls -- -R", ShellTraits{}},
		{"grep -rn foo .", ShellTraits{BroadSearch: true, RecursiveSearch: true}},
		{"grep foo file.txt", ShellTraits{BroadSearch: true}},
		{"grep --recursive foo", ShellTraits{BroadSearch: true, RecursiveSearch: true}},
		{"rg TODO | head -20", ShellTraits{BroadSearch: true, RecursiveSearch: true, HasHead: true}},
		{"cd src && find . -name '*.go'", ShellTraits{BulkListing: true}},
		{"echo 'a | b'; cat x", ShellTraits{BulkListing: true}},
		{"du -sh .", ShellTraits{BulkListing: true}},
		{"echo \"unterminated", ShellTraits{}},
		{"", ShellTraits{}},
	}
	for _, tt := range tests {
		t.Run(tt.cmd, func(t *testing.T) {
			assert.Equal(t, tt.want, AnalyzeShellCommand(tt.cmd))
		})
	}
}

func TestTraitNotes(t *testing.T) {
	assert.Empty(t, ShellTraits{}.notes())
	assert.Len(t, ShellTraits{RecursiveLS: true, BulkListing: true, RecursiveSearch: true}.notes(), 3)
	assert.Empty(t, ShellTraits{RecursiveSearch: true, HasHead: true}.notes())
}

func TestRenderProcessSuccess(t *testing.T) {
	res := renderProcess(processResult{Stdout: "hello\n"}, processView{lang: "bash", capNote: capNote}, truncate.DefaultBudgets())
	assert.Equal(t, "## Command Successful\n### STDOUT\n```bash\nhello\n```\n", res.Model)
	assert.Equal(t, res.Model, res.Display)
	assert.False(t, res.IsError)
}

func TestRenderProcessFailureWithStderr(t *testing.T) {
	res := renderProcess(processResult{Stderr: "boom\n", ExitCode: 2}, processView{lang: "python", capNote: capNotePy}, truncate.DefaultBudgets())
	assert.Equal(t, "## Command FAILED (Exit Code: 2)\n### STDERR\n```text\nboom\n```\n", res.Model)
	assert.True(t, res.IsError)
}

func TestRenderProcessNoOutput(t *testing.T) {
	res := renderProcess(processResult{}, processView{lang: "bash"}, truncate.DefaultBudgets())
	assert.Equal(t, "## Command Successful\nThe command produced no output.\n", res.Model)
}

func lines(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString("line ")
		b.WriteString(strings.Repeat("x", i%7))
		b.WriteString("\n")
	}
	return b.String()
}

func TestRenderProcessStrictBudgetForRecursiveCommands(t *testing.T) {
	b := truncate.DefaultBudgets()
	v := processView{lang: "bash", traits: AnalyzeShellCommand("ls -R /"), capNote: capNote}
	res := renderProcess(processResult{Stdout: lines(100)}, v, b)

	assert.Contains(t, res.Model, "... (output truncated, 60 more lines hidden) ...")
	assert.Contains(t, res.Display, "_Recursive directory listings are trimmed")
	assert.Equal(t, 0, strings.Count(res.Display, "```")%2)
	assert.Contains(t, res.Display, "lines hidden")
}

func TestRenderProcessSearchBudget(t *testing.T) {
	v := processView{lang: "bash", traits: AnalyzeShellCommand("grep foo big.txt"), capNote: capNote}
	res := renderProcess(processResult{Stdout: lines(100)}, v, truncate.DefaultBudgets())
	assert.Contains(t, res.Model, "20 more lines hidden")
}

func TestRenderProcessCollapsesOverCharacterCap(t *testing.T) {
	b := truncate.DefaultBudgets()
	b.ModelMaxChars = 500
	res := renderProcess(processResult{Stdout: lines(100), Stderr: "warn\n", ExitCode: 1}, processView{lang: "bash", capNote: capNote}, b)

	assert.True(t, strings.HasPrefix(res.Model, "## Command FAILED (Exit Code: 1)\n### OUTPUT (combined)\n```text\n[exit_code] 1\n\n[stdout]\nline"), res.Model)
	assert.Contains(t, res.Model, "_MODEL NOTE: Result automatically truncated to protect the context window (kept first 500 of ")
	assert.Contains(t, res.Model, "Consider narrowing the command")
	assert.NotContains(t, res.Model, "### STDOUT")
}

func TestCombinedPayload(t *testing.T) {
	assert.Equal(t, "[exit_code] 0", combinedPayload("", "", 0))
	assert.Equal(t, "[exit_code] 3\n\n[stdout]\no\n\n[stderr]\ne", combinedPayload("o\n", "e", 3))
}

func TestRenderRunError(t *testing.T) {
	b := truncate.DefaultBudgets()
	res := renderRunError(&TimeoutError{Command: "sleep 10", Timeout: 2 * time.Second}, b)
	assert.Equal(t, "## Error\nExecution timed out after 2s.\n```text\nCommand 'sleep 10' timed out after 2 seconds\n```\n", res.Model)
	assert.True(t, res.IsError)

	res = renderRunError(context.Canceled, b)
	assert.Equal(t, "## Error\nExecution interrupted by user.\n", res.Model)

	res = renderRunError(ErrNoPython, b)
	assert.True(t, strings.HasPrefix(res.Model, "## Error\nExecution failed:\n```text\n"))
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX shell required")
	}
}

func newExecutor(t *testing.T, root string) *harmony.ToolExecutor {
	t.Helper()
	exec, err := harmony.NewToolExecutor(Builtins(Config{Root: root}))
	require.NoError(t, err)
	return exec
}

func TestShellToolRunsInRoot(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "marker.txt"), []byte("x"), 0o644))

	exec := newExecutor(t, root)
	res := exec.Execute(context.Background(), "shell", json.RawMessage(`{"command":"ls"}`))
	assert.False(t, res.IsError, res.Model)
	assert.Contains(t, res.Model, "marker.txt")
}

func TestExecShellNonZeroExit(t *testing.T) {
	skipOnWindows(t)
	exec := newExecutor(t, t.TempDir())
	res := exec.Execute(context.Background(), "exec", json.RawMessage(`{"kind":"shell","code":"echo out; echo err >&2; exit 3"}`))
	assert.True(t, res.IsError)
	assert.Equal(t, "## Command FAILED (Exit Code: 3)\n### STDOUT\n```bash\nout\n```\n### STDERR\n```text\nerr\n```\n", res.Model)
}

func TestExecRejectsUnknownKind(t *testing.T) {
	exec := newExecutor(t, t.TempDir())
	res := exec.Execute(context.Background(), "exec", json.RawMessage(`{"kind":"ruby","code":"puts 1"}`))
	assert.True(t, res.IsError)
	// The enum check in the schema fires before the handler.
	assert.Contains(t, res.Model, "Invalid arguments for `exec`")
}

func TestShellTimeoutKillsProcessGroup(t *testing.T) {
	skipOnWindows(t)
	root := t.TempDir()
	set := New(Config{Root: root})

	start := time.Now()
	res := set.runShell(context.Background(), "sleep 30 & sleep 30; echo done", 1)
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.True(t, res.IsError)
	assert.True(t, strings.HasPrefix(res.Model, "## Error\nExecution timed out after 1s.\n"), res.Model)
}

func TestShellCancelled(t *testing.T) {
	skipOnWindows(t)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	res := New(Config{Root: t.TempDir()}).runShell(ctx, "sleep 30", 60)
	assert.Equal(t, "## Error\nExecution interrupted by user.\n", res.Model)
}

func TestPythonTool(t *testing.T) {
	if _, err := FindPython(""); err != nil {
		t.Skip("python not installed")
	}
	exec := newExecutor(t, t.TempDir())
	res := exec.Execute(context.Background(), "python", json.RawMessage(`{"code":"print(6*7)"}`))
	assert.Equal(t, "## Command Successful\n### STDOUT\n```python\n42\n```\n", res.Model)
}

func TestApplyPatchTool(t *testing.T) {
	root := t.TempDir()
	exec := newExecutor(t, root)

	args, err := json.Marshal(map[string]string{"patch": "*** Begin Patch\n*** Add File: notes.md\n+# hi\n*** End Patch"})
	require.NoError(t, err)
	res := exec.Execute(context.Background(), "apply_patch", args)
	assert.False(t, res.IsError, res.Model)
	assert.True(t, strings.HasPrefix(res.Model, "## ✅ Patch Applied\n- Added notes.md (+1/-0, net +1)"), res.Model)

	data, err := os.ReadFile(filepath.Join(root, "notes.md"))
	require.NoError(t, err)
	assert.Equal(t, "# hi\n", string(data))

	res = exec.Execute(context.Background(), "apply_patch", json.RawMessage(`{"patch":"*** Begin Patch\n*** Delete File: nope\n*** End Patch"}`))
	assert.True(t, res.IsError)
	assert.Equal(t, "## Error\nDelete target does not exist or is a directory: nope", res.Model)
}

func TestBuiltinsOrder(t *testing.T) {
	var names []string
	for _, tool := range Builtins(Config{}) {
		names = append(names, tool.Spec().Name)
	}
	assert.Equal(t, []string{"exec", "python", "shell", "apply_patch"}, names)
}
