package harmony

import (
	"context"

	"go.uber.org/zap"
)

// StepRequest configures a single assistant step: one streamed response
// followed by sequential execution of the tool calls it declared.
type StepRequest struct {
	Provider     Provider
	SystemPrompt string
	History      []Message
	Executor     *ToolExecutor
}

// StepResult holds the assistant message followed by one tool result
// message per declared tool call, in declaration order.
type StepResult []Message

// Assistant returns the step's assistant message.
func (r StepResult) Assistant() (AssistantMessage, bool) {
	for _, m := range r {
		if am, ok := m.(AssistantMessage); ok {
			return am, true
		}
	}
	return AssistantMessage{}, false
}

// HasToolCall reports whether the model asked for tools, which means the
// conversation should continue with another step.
func (r StepResult) HasToolCall() bool {
	am, ok := r.Assistant()
	return ok && !am.Interrupted && len(am.ToolCalls()) > 0
}

// ToolResults returns the tool result messages of the step.
func (r StepResult) ToolResults() []ToolResultMessage {
	var out []ToolResultMessage
	for _, m := range r {
		if tm, ok := m.(ToolResultMessage); ok {
			out = append(out, tm)
		}
	}
	return out
}

type stepConfig struct {
	stepEmitter
	logger *zap.Logger
}

// StepOption configures Step.
type StepOption func(*stepConfig)

// WithOnDelta registers a callback for streaming-only updates.
func WithOnDelta(fn func(MessageDelta)) StepOption {
	return func(c *stepConfig) { c.onDelta = fn }
}

// WithOnMessage registers a callback for completed messages.
func WithOnMessage(fn func(Message)) StepOption {
	return func(c *stepConfig) { c.onMessage = fn }
}

// WithLogger sets the step logger.
func WithLogger(l *zap.Logger) StepOption {
	return func(c *stepConfig) { c.logger = l }
}

// Step runs one step synchronously. When ctx is cancelled mid-stream the
// partial assistant message is returned together with ctx.Err() and no
// tool is executed.
func Step(ctx context.Context, req StepRequest, opts ...StepOption) (StepResult, error) {
	cfg := stepConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return runStep(ctx, req, cfg)
}
