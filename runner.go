package harmony

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/buchuleaf/harmony-cli/truncate"
	"go.uber.org/zap"
)

const interruptedToolText = "Tool call interrupted by user before it ran."

func runStep(ctx context.Context, req StepRequest, cfg stepConfig) (_ StepResult, err error) {
	if req.Provider == nil {
		return nil, ErrNoProvider
	}
	emitter := cfg.stepEmitter
	logger := cfg.logger

	var tools []ToolSpec
	if req.Executor != nil {
		tools = req.Executor.Specs()
	}

	start := time.Now()
	stream, err := req.Provider.Stream(ctx, ProviderRequest{
		SystemPrompt: req.SystemPrompt,
		History:      req.History,
		Tools:        tools,
	})
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	defer func() {
		cerr := stream.Close()
		if cerr == nil || errors.Is(cerr, ErrStreamClosed) {
			return
		}
		if err != nil {
			err = errors.Join(err, fmt.Errorf("close stream: %w", cerr))
			return
		}
		logger.Warn("closing stream failed", zap.Error(cerr))
	}()

	acc := NewToolCallAccumulator(logger)
	var (
		text       strings.Builder
		reasoning  strings.Builder
		usage      *Usage
		stopReason StopReason
	)

	interrupted := false
	for {
		d, nextErr := stream.Next(ctx)
		if nextErr != nil {
			if errors.Is(nextErr, io.EOF) {
				break
			}
			if ctx.Err() != nil {
				interrupted = true
				break
			}
			return nil, fmt.Errorf("read stream: %w", nextErr)
		}

		if d.Reasoning != "" {
			reasoning.WriteString(d.Reasoning)
			emitter.delta(ThinkingDelta{Delta: d.Reasoning})
		}
		if d.Content != "" {
			text.WriteString(d.Content)
			emitter.delta(TextDelta{Delta: d.Content})
		}
		for _, cd := range acc.Ingest(d) {
			emitter.delta(cd)
		}
		if d.Usage != nil {
			usage = d.Usage
		}
		if d.FinishReason != "" {
			stopReason = d.FinishReason
		}
	}

	assistant := AssistantMessage{Timestamp: time.Now().UnixMilli(), Usage: usage, StopReason: stopReason}
	if reasoning.Len() > 0 {
		assistant.Parts = append(assistant.Parts, ThinkingPart{Thinking: reasoning.String()})
	}

	if interrupted {
		// Partial tool calls stay visible through the snapshot but are
		// never finalized or run.
		pending := acc.Snapshot()
		content := strings.TrimSpace(strings.TrimRight(text.String(), " \t\n") + "\n\n" + InterruptedNote)
		assistant.Parts = append(assistant.Parts, TextPart{Text: content})
		assistant.Interrupted = true
		assistant.StopReason = StopAborted
		emitter.message(assistant)
		emitter.delta(StepStatusDelta{Interrupted: true, Duration: time.Since(start), Usage: usage, Pending: pending})
		logger.Info("step interrupted", zap.Int("pending_calls", len(pending)))
		return StepResult{assistant}, ctx.Err()
	}

	calls := acc.Finalize()
	if t := strings.TrimRight(text.String(), " \t\n"); t != "" {
		assistant.Parts = append(assistant.Parts, TextPart{Text: t})
	}
	for _, c := range calls {
		assistant.Parts = append(assistant.Parts, c.Part())
	}
	if assistant.StopReason == "" {
		assistant.StopReason = StopStop
		if len(calls) > 0 {
			assistant.StopReason = StopToolUse
		}
	}
	emitter.message(assistant)
	emitter.delta(StepStatusDelta{Duration: time.Since(start), Usage: usage, Pending: acc.Snapshot()})
	logger.Debug("assistant message complete",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("text_len", text.Len()),
		zap.Int("tool_calls", len(calls)))

	result := StepResult{assistant}
	for _, msg := range executeTools(ctx, calls, req.Executor, emitter, logger) {
		result = append(result, msg)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// executeTools runs calls one at a time in declaration order. Each call
// finishes, and its message is emitted, before the next one starts. Calls
// left after cancellation get an interrupted result so every call is
// answered.
func executeTools(ctx context.Context, calls []ToolCall, executor *ToolExecutor, emitter stepEmitter, logger *zap.Logger) []ToolResultMessage {
	if len(calls) == 0 {
		return nil
	}
	msgs := make([]ToolResultMessage, 0, len(calls))
	for _, call := range calls {
		var res ToolResult
		var elapsed time.Duration
		switch {
		case ctx.Err() != nil:
			res = interruptedToolResult(executor)
		case executor == nil:
			res = ErrorResult(fmt.Sprintf("Tool `%s` not found.", call.Name), executorBudgets(nil))
		default:
			emitter.delta(ToolExecStartDelta{Call: call})
			t0 := time.Now()
			res = executor.ExecuteCall(ctx, call)
			elapsed = time.Since(t0)
			logger.Info("tool executed",
				zap.String("tool", call.Name),
				zap.String("call_id", call.CallID),
				zap.Duration("elapsed", elapsed),
				zap.Bool("is_error", res.IsError))
		}
		emitter.delta(ToolExecEndDelta{Call: call, Result: res, Duration: elapsed})

		msg := ToolResultMessage{
			CallID:    call.CallID,
			Name:      call.Name,
			IsError:   res.IsError,
			Parts:     []Part{TextPart{Text: res.Model}},
			Display:   res.Display,
			Timestamp: time.Now().UnixMilli(),
		}
		emitter.message(msg)
		msgs = append(msgs, msg)
	}
	return msgs
}

func interruptedToolResult(executor *ToolExecutor) ToolResult {
	return ErrorResult(interruptedToolText, executorBudgets(executor))
}

func executorBudgets(executor *ToolExecutor) truncate.Budgets {
	if executor != nil {
		return executor.budgets
	}
	return truncate.DefaultBudgets()
}

type stepEmitter struct {
	onDelta   func(MessageDelta)
	onMessage func(Message)
}

func (e stepEmitter) delta(d MessageDelta) {
	if d == nil || e.onDelta == nil {
		return
	}
	e.onDelta(d)
}

func (e stepEmitter) message(m Message) {
	if m == nil || e.onMessage == nil {
		return
	}
	e.onMessage(m)
}
