package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/providers/base"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Stream maps Messages stream events onto deltas. Content block indexes
// become tool-call slot indexes.
type Stream struct {
	dec    ssestream.Decoder
	debug  *base.DebugLogger
	logger *zap.Logger

	mu          sync.Mutex
	done        bool
	inputTokens int

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func newStream(dec ssestream.Decoder, debug *base.DebugLogger, logger *zap.Logger) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stream{dec: dec, debug: debug, logger: logger}
}

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

		data := s.dec.Event().Data
		if len(data) == 0 {
			continue
		}
		s.debug.Record("event", data)

		if gjson.GetBytes(data, "type").Str == "error" {
			s.done = true
			msg := gjson.GetBytes(data, "error.message").Str
			if msg == "" {
				msg = string(data)
			}
			return harmony.StreamDelta{}, errors.New("anthropic stream error: " + msg)
		}

		var ev anthropic.MessageStreamEventUnion
		if err := json.Unmarshal(data, &ev); err != nil {
			s.logger.Debug("skipping malformed event", zap.ByteString("data", data), zap.Error(err))
			continue
		}
		d, stop := s.convert(ev)
		if stop {
			s.done = true
			return harmony.StreamDelta{}, io.EOF
		}
		if d == nil {
			continue
		}
		return *d, nil
	}
}

func (s *Stream) convert(ev anthropic.MessageStreamEventUnion) (*harmony.StreamDelta, bool) {
	switch ev.Type {
	case "message_start":
		s.inputTokens = int(ev.AsMessageStart().Message.Usage.InputTokens)
	case "content_block_start":
		start := ev.AsContentBlockStart()
		if start.ContentBlock.Type == "tool_use" {
			return &harmony.StreamDelta{ToolCalls: []harmony.ToolCallFragment{{
				Index: int(start.Index),
				ID:    start.ContentBlock.ID,
				Name:  start.ContentBlock.Name,
			}}}, false
		}
	case "content_block_delta":
		cd := ev.AsContentBlockDelta()
		switch cd.Delta.Type {
		case "text_delta":
			if cd.Delta.Text != "" {
				return &harmony.StreamDelta{Content: cd.Delta.Text}, false
			}
		case "thinking_delta":
			if cd.Delta.Thinking != "" {
				return &harmony.StreamDelta{Reasoning: cd.Delta.Thinking}, false
			}
		case "input_json_delta":
			if cd.Delta.PartialJSON != "" {
				return &harmony.StreamDelta{ToolCalls: []harmony.ToolCallFragment{{
					Index:     int(cd.Index),
					Arguments: cd.Delta.PartialJSON,
				}}}, false
			}
		}
	case "message_delta":
		md := ev.AsMessageDelta()
		d := &harmony.StreamDelta{}
		if md.Delta.StopReason != "" {
			d.FinishReason = mapStopReason(md.Delta.StopReason)
		}
		if out := int(md.Usage.OutputTokens); out > 0 || s.inputTokens > 0 {
			in := s.inputTokens
			if md.Usage.InputTokens > 0 {
				in = int(md.Usage.InputTokens)
			}
			d.Usage = &harmony.Usage{
				InputTokens:      in,
				OutputTokens:     out,
				CachedReadTokens: int(md.Usage.CacheReadInputTokens),
				TotalTokens:      in + out,
			}
		}
		return d, false
	case "message_stop":
		return nil, true
	}
	return nil, false
}

// Close releases the response body, unblocking a pending Next.
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

func mapStopReason(r anthropic.StopReason) harmony.StopReason {
	switch r {
	case anthropic.StopReasonMaxTokens:
		return harmony.StopLength
	case anthropic.StopReasonToolUse:
		return harmony.StopToolUse
	default:
		return harmony.StopStop
	}
}

var _ harmony.ProviderStream = (*Stream)(nil)
