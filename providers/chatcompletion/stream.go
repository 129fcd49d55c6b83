package chatcompletion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/providers/base"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/packages/ssestream"
	"go.uber.org/zap"
)

var doneMarker = []byte("[DONE]")

// Stream decodes server-sent chat-completion chunks into deltas. Frames
// that are not valid chunk JSON are logged and skipped.
type Stream struct {
	dec     ssestream.Decoder
	handler ReasoningHandler
	debug   *base.DebugLogger
	logger  *zap.Logger

	mu        sync.Mutex
	done      bool
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(dec ssestream.Decoder, handler ReasoningHandler, debug *base.DebugLogger, logger *zap.Logger) *Stream {
	if handler == nil {
		handler = NoOpReasoningHandler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{dec: dec, handler: handler, debug: debug, logger: logger}
}

// Next returns the next non-empty delta, or io.EOF after [DONE] or the end
// of the body.
func (s *Stream) Next(ctx context.Context) (harmony.StreamDelta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		if s.closed.Load() {
			return harmony.StreamDelta{}, harmony.ErrStreamClosed
		}
		if s.done || s.dec == nil {
			return harmony.StreamDelta{}, io.EOF
		}
		if err := ctx.Err(); err != nil {
			return harmony.StreamDelta{}, err
		}

		if !s.dec.Next() {
			s.done = true
			if err := s.dec.Err(); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return harmony.StreamDelta{}, ctxErr
				}
				if s.closed.Load() {
					return harmony.StreamDelta{}, harmony.ErrStreamClosed
				}
				return harmony.StreamDelta{}, fmt.Errorf("read event stream: %w", err)
			}
			return harmony.StreamDelta{}, io.EOF
		}

		data := bytes.TrimSpace(s.dec.Event().Data)
		if len(data) == 0 {
			continue
		}
		if bytes.HasPrefix(data, doneMarker) {
			s.done = true
			return harmony.StreamDelta{}, io.EOF
		}
		s.debug.Record("chunk", data)

		d, ok := s.decode(data)
		if !ok || isEmpty(d) {
			continue
		}
		return d, nil
	}
}

func (s *Stream) decode(data []byte) (harmony.StreamDelta, bool) {
	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		s.logger.Debug("skipping malformed chunk", zap.ByteString("data", data), zap.Error(err))
		return harmony.StreamDelta{}, false
	}

	var d harmony.StreamDelta
	if chunk.Usage.TotalTokens > 0 {
		d.Usage = &harmony.Usage{
			InputTokens:      int(chunk.Usage.PromptTokens),
			OutputTokens:     int(chunk.Usage.CompletionTokens),
			TotalTokens:      int(chunk.Usage.TotalTokens),
			CachedReadTokens: int(chunk.Usage.PromptTokensDetails.CachedTokens),
		}
	}
	if len(chunk.Choices) == 0 {
		return d, true
	}

	choice := chunk.Choices[0]
	d.Content = choice.Delta.Content
	d.Reasoning = s.handler.ExtractThinking(data)
	for _, tc := range choice.Delta.ToolCalls {
		d.ToolCalls = append(d.ToolCalls, harmony.ToolCallFragment{
			Index:     int(tc.Index),
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	if choice.FinishReason != "" {
		d.FinishReason = mapFinishReason(choice.FinishReason)
	}
	return d, true
}

// Close releases the response body, unblocking a pending Next. Next
// returns ErrStreamClosed afterwards.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if s.dec != nil {
			s.closeErr = s.dec.Close()
		}
		_ = s.debug.Close()
	})
	return s.closeErr
}

func isEmpty(d harmony.StreamDelta) bool {
	return d.Content == "" && d.Reasoning == "" && len(d.ToolCalls) == 0 && d.FinishReason == "" && d.Usage == nil
}

func mapFinishReason(reason string) harmony.StopReason {
	switch reason {
	case "stop":
		return harmony.StopStop
	case "length":
		return harmony.StopLength
	case "tool_calls", "function_call":
		return harmony.StopToolUse
	default:
		return harmony.StopStop
	}
}

var _ harmony.ProviderStream = (*Stream)(nil)
