// Package tools provides the built-in tools: exec, python, shell and
// apply_patch.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/patch"
	"github.com/buchuleaf/harmony-cli/truncate"
)

// DefaultTimeout is used when a call does not pass a timeout.
const DefaultTimeout = 30 * time.Second

// Config configures the built-in tools.
type Config struct {
	// Root is the working directory for processes and patches.
	Root string
	// PythonBin overrides interpreter discovery.
	PythonBin string
	// Shell overrides the shell binary; ShellName is how tool
	// descriptions refer to it.
	Shell     string
	ShellName string

	DefaultTimeout time.Duration
	Budgets        truncate.Budgets
	Logger         *zap.Logger
}

// Set holds the built-in tools and their shared configuration.
type Set struct {
	cfg Config
}

// New returns a Set with defaults filled in.
func New(cfg Config) *Set {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	cfg.Budgets = cfg.Budgets.WithDefaults()
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Shell == "" {
		cfg.Shell, cfg.ShellName = defaultShell()
	}
	if cfg.ShellName == "" {
		cfg.ShellName = cfg.Shell
	}
	return &Set{cfg: cfg}
}

// Builtins returns exec, python, shell and apply_patch in that order.
func Builtins(cfg Config) []harmony.Tool {
	s := New(cfg)
	return []harmony.Tool{s.Exec(), s.Python(), s.Shell(), s.ApplyPatch()}
}

var timeoutParam = map[string]any{"type": "integer", "description": "Seconds before kill.", "default": 30}

// Exec runs Python or shell code.
func (s *Set) Exec() harmony.Tool {
	return harmony.ToolFunc{
		ToolSpec: harmony.ToolSpec{
			Name:        "exec",
			Description: fmt.Sprintf("Execute code via Python or %s. Large outputs are automatically truncated with a note. Prefer the dedicated `python` tool when you only need Python execution.", s.cfg.ShellName),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"kind":    map[string]any{"type": "string", "enum": []any{"python", "shell"}, "description": "Execution mode."},
					"code":    map[string]any{"type": "string", "description": "Python source or shell command string."},
					"timeout": timeoutParam,
				},
				"required": []any{"kind", "code"},
			},
		},
		Fn: func(ctx context.Context, raw json.RawMessage) (harmony.ToolResult, error) {
			var args struct {
				Kind    string `json:"kind"`
				Code    string `json:"code"`
				Timeout int    `json:"timeout"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return harmony.ToolResult{}, err
			}
			switch strings.ToLower(args.Kind) {
			case "python":
				return s.runPython(ctx, args.Code, args.Timeout, capNote), nil
			case "shell":
				return s.runShell(ctx, args.Code, args.Timeout), nil
			default:
				return harmony.ErrorResult("`kind` must be 'python' or 'shell'.", s.cfg.Budgets), nil
			}
		},
	}
}

// Python runs Python code.
func (s *Set) Python() harmony.Tool {
	return harmony.ToolFunc{
		ToolSpec: harmony.ToolSpec{
			Name:        "python",
			Description: "Execute Python code with the same output handling as exec(kind='python'). Large outputs are automatically truncated with a note.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"code":    map[string]any{"type": "string", "description": "Python source string."},
					"timeout": timeoutParam,
				},
				"required": []any{"code"},
			},
		},
		Fn: func(ctx context.Context, raw json.RawMessage) (harmony.ToolResult, error) {
			var args struct {
				Code    string `json:"code"`
				Timeout int    `json:"timeout"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return harmony.ToolResult{}, err
			}
			return s.runPython(ctx, args.Code, args.Timeout, capNotePy), nil
		},
	}
}

// Shell runs a shell command.
func (s *Set) Shell() harmony.Tool {
	return harmony.ToolFunc{
		ToolSpec: harmony.ToolSpec{
			Name:        "shell",
			Description: fmt.Sprintf("Run a %s command in the working directory. Large outputs are automatically truncated with a note.", s.cfg.ShellName),
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"command": map[string]any{"type": "string", "description": "The command line to run."},
					"timeout": timeoutParam,
				},
				"required": []any{"command"},
			},
		},
		Fn: func(ctx context.Context, raw json.RawMessage) (harmony.ToolResult, error) {
			var args struct {
				Command string `json:"command"`
				Timeout int    `json:"timeout"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return harmony.ToolResult{}, err
			}
			return s.runShell(ctx, args.Command, args.Timeout), nil
		},
	}
}

// ApplyPatch edits files with a patch document.
func (s *Set) ApplyPatch() harmony.Tool {
	return harmony.ToolFunc{
		ToolSpec: harmony.ToolSpec{
			Name: "apply_patch",
			Description: "Edit files by providing a patch document. Always wrap your changes between `*** Begin Patch` and `*** End Patch`. Use one of:\n" +
				"- `*** Add File: path` (create the file from the following `+` lines)\n" +
				"- `*** Overwrite File: path` (replace file with provided `+` lines)\n" +
				"- `*** Update File: path` (touch the file; follow with `*** Move to: newpath` to rename it)\n" +
				"- `*** Delete File: path`\n\n" +
				"Every content line must start with `+`. Fenced code blocks are accepted and stripped. Large results auto-truncate.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"patch": map[string]any{"type": "string", "description": "The patch text to apply."},
				},
				"required": []any{"patch"},
			},
		},
		Fn: func(ctx context.Context, raw json.RawMessage) (harmony.ToolResult, error) {
			var args struct {
				Patch string `json:"patch"`
			}
			if err := json.Unmarshal(raw, &args); err != nil {
				return harmony.ToolResult{}, err
			}
			report, err := patch.Apply(ctx, s.cfg.Root, args.Patch,
				patch.WithLogger(s.cfg.Logger), patch.WithBudgets(s.cfg.Budgets))
			if err != nil {
				model, display := patch.RenderError(report, err, s.cfg.Budgets)
				return harmony.ToolResult{Model: model, Display: display, IsError: true}, nil
			}
			model, display := report.Render(s.cfg.Budgets)
			return harmony.ToolResult{Model: model, Display: display}, nil
		},
	}
}

func (s *Set) timeout(seconds int) time.Duration {
	if seconds <= 0 {
		return s.cfg.DefaultTimeout
	}
	return time.Duration(seconds) * time.Second
}

func (s *Set) runShell(ctx context.Context, command string, seconds int) harmony.ToolResult {
	timeout := s.timeout(seconds)
	name, args := shellCommand(s.cfg.Shell, command)
	s.cfg.Logger.Debug("running shell command", zap.String("command", command), zap.Duration("timeout", timeout))

	res, err := runProcess(ctx, s.cfg.Root, timeout, command, name, args...)
	if err != nil {
		s.cfg.Logger.Info("shell command did not complete", zap.Error(err))
		return renderRunError(err, s.cfg.Budgets)
	}
	return renderProcess(res, processView{lang: "bash", traits: AnalyzeShellCommand(command), capNote: capNote}, s.cfg.Budgets)
}

func (s *Set) runPython(ctx context.Context, code string, seconds int, note string) harmony.ToolResult {
	timeout := s.timeout(seconds)
	bin, err := FindPython(s.cfg.PythonBin)
	if err != nil {
		return renderRunError(err, s.cfg.Budgets)
	}
	s.cfg.Logger.Debug("running python", zap.String("interpreter", bin), zap.Int("code_len", len(code)), zap.Duration("timeout", timeout))

	res, err := runProcess(ctx, s.cfg.Root, timeout, code, bin, "-c", code)
	if err != nil {
		s.cfg.Logger.Info("python run did not complete", zap.Error(err))
		return renderRunError(err, s.cfg.Budgets)
	}
	return renderProcess(res, processView{lang: "python", capNote: note}, s.cfg.Budgets)
}
