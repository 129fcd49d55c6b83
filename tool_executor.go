package harmony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buchuleaf/harmony-cli/truncate"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"
)

// ToolExecutor resolves tool names to handlers and turns every outcome,
// including failures, into a ToolResult.
type ToolExecutor struct {
	tools   map[string]Tool
	order   []string
	schemas map[string]*jsonschema.Schema

	budgets truncate.Budgets
	logger  *zap.Logger
}

type executorConfig struct {
	budgets truncate.Budgets
	logger  *zap.Logger
}

// ExecutorOption configures a ToolExecutor.
type ExecutorOption func(*executorConfig)

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(l *zap.Logger) ExecutorOption {
	return func(c *executorConfig) { c.logger = l }
}

// WithBudgets sets the budgets applied to error documents. Zero fields
// fall back to the defaults.
func WithBudgets(b truncate.Budgets) ExecutorOption {
	return func(c *executorConfig) { c.budgets = b }
}

// WithDisplayLines overrides only the display document budget.
func WithDisplayLines(n int) ExecutorOption {
	return func(c *executorConfig) { c.budgets.DisplayDocLines = n }
}

// NewToolExecutor registers tools and compiles their parameter schemas.
func NewToolExecutor(tools []Tool, opts ...ExecutorOption) (*ToolExecutor, error) {
	var cfg executorConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.budgets = cfg.budgets.WithDefaults()
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}

	e := &ToolExecutor{
		tools:   make(map[string]Tool, len(tools)),
		schemas: make(map[string]*jsonschema.Schema, len(tools)),
		budgets: cfg.budgets,
		logger:  cfg.logger,
	}
	for _, t := range tools {
		spec := t.Spec()
		if spec.Name == "" {
			return nil, errors.New("harmony: tool with empty name")
		}
		if _, dup := e.tools[spec.Name]; dup {
			return nil, fmt.Errorf("harmony: duplicate tool %q", spec.Name)
		}
		schema, err := compileSchema(spec)
		if err != nil {
			return nil, err
		}
		e.tools[spec.Name] = t
		e.order = append(e.order, spec.Name)
		if schema != nil {
			e.schemas[spec.Name] = schema
		}
	}
	return e, nil
}

func compileSchema(spec ToolSpec) (*jsonschema.Schema, error) {
	if len(spec.Parameters) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(spec.Parameters)
	if err != nil {
		return nil, fmt.Errorf("marshal schema for %q: %w", spec.Name, err)
	}
	url := spec.Name + ".schema.json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema resource for %q: %w", spec.Name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %q: %w", spec.Name, err)
	}
	return schema, nil
}

// Specs returns the registered tool specs in registration order.
func (e *ToolExecutor) Specs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(e.order))
	for _, name := range e.order {
		specs = append(specs, e.tools[name].Spec())
	}
	return specs
}

// Lookup returns the tool registered under name.
func (e *ToolExecutor) Lookup(name string) (Tool, error) {
	t, ok := e.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return t, nil
}

// ExecuteCall decodes a finalized call's argument string and runs it.
// Undecodable arguments are reported to the model as a tool message.
func (e *ToolExecutor) ExecuteCall(ctx context.Context, call ToolCall) ToolResult {
	raw := strings.TrimSpace(call.Arguments)
	if raw == "" {
		raw = "{}"
	}
	var probe any
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		msg := fmt.Sprintf("Error decoding arguments for %s: %v\nArguments received: %s", call.Name, err, call.Arguments)
		e.logger.Warn("undecodable tool arguments", zap.String("tool", call.Name), zap.String("call_id", call.CallID), zap.Error(err))
		return ToolResult{Model: truncate.ModelView(msg, e.budgets), Display: e.display(msg), IsError: true}
	}
	return e.Execute(ctx, call.Name, json.RawMessage(raw))
}

// Execute runs the named tool. It never returns an error: unknown tools,
// invalid arguments, handler errors and panics all become error results.
func (e *ToolExecutor) Execute(ctx context.Context, name string, args json.RawMessage) (res ToolResult) {
	tool, err := e.Lookup(name)
	if err != nil {
		e.logger.Warn("tool not found", zap.String("tool", name))
		return e.errorResult(fmt.Sprintf("Tool `%s` not found.", name))
	}

	if err := e.validate(name, args); err != nil {
		e.logger.Info("invalid tool arguments", zap.String("tool", name), zap.Error(err))
		return e.errorResult(fmt.Sprintf("Invalid arguments for `%s`: %v", name, err))
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("tool panicked", zap.String("tool", name), zap.Any("panic", r))
			res = e.errorResult(fmt.Sprintf("panic: %v", r))
		}
	}()

	start := time.Now()
	res, err = tool.Execute(ctx, args)
	e.logger.Debug("tool finished",
		zap.String("tool", name),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("is_error", res.IsError),
		zap.Error(err))
	if err != nil {
		return e.errorResult(err.Error())
	}
	return res
}

func (e *ToolExecutor) validate(name string, args json.RawMessage) error {
	var v any
	if err := json.Unmarshal(args, &v); err != nil {
		return err
	}
	if _, isObject := v.(map[string]any); !isObject {
		return errors.New("arguments must be a JSON object")
	}
	schema, ok := e.schemas[name]
	if !ok {
		return nil
	}
	return schema.Validate(v)
}

func (e *ToolExecutor) errorResult(msg string) ToolResult {
	return ErrorResult(msg, e.budgets)
}

func (e *ToolExecutor) display(doc string) string {
	return DisplayView(doc, e.budgets)
}

// ErrorResult renders msg as a "## Error" document for both audiences.
// Both views are bounded by b.
func ErrorResult(msg string, b truncate.Budgets) ToolResult {
	doc := truncate.ErrorDoc(msg)
	return ToolResult{Model: truncate.ModelView(doc, b), Display: DisplayView(doc, b), IsError: true}
}

// DisplayView cuts long lines of doc to the display line length and then
// trims it to the display document budget.
func DisplayView(doc string, b truncate.Budgets) string {
	cut := truncate.Output(doc, truncate.Budget{MaxLineLength: b.Display.MaxLineLength})
	if strings.HasSuffix(doc, "\n") && !strings.HasSuffix(cut, "\n") {
		cut += "\n"
	}
	return truncate.Display(cut, b.DisplayDocLines)
}
