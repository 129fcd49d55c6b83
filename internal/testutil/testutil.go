// Package testutil provides common testing utilities for step and provider tests.
package testutil

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	harmony "github.com/buchuleaf/harmony-cli"
)

const DefaultTimeout = 60 * time.Second

// SkipIfNoEnv skips the test if the environment variable is not set.
func SkipIfNoEnv(t *testing.T, envVar string) {
	t.Helper()
	if os.Getenv(envVar) == "" {
		t.Skipf("skipping: %s not set", envVar)
	}
}

// Script is the sequence of deltas one Stream call replays. When Block is
// set the stream blocks after the last delta until its context ends,
// which is how tests simulate an operator interrupt.
type Script struct {
	Deltas []harmony.StreamDelta
	Block  bool
	Err    error
	// CloseErr is returned by the stream's Close.
	CloseErr error
}

// ScriptedProvider replays one Script per Stream call and records every
// request it received.
type ScriptedProvider struct {
	mu       sync.Mutex
	scripts  []Script
	requests []harmony.ProviderRequest
	once     sync.Once

	// Reached is closed when a blocking script has delivered every delta.
	Reached chan struct{}
}

// NewScriptedProvider returns a provider that plays scripts in order.
func NewScriptedProvider(scripts ...Script) *ScriptedProvider {
	return &ScriptedProvider{scripts: scripts, Reached: make(chan struct{})}
}

// Requests returns the requests seen so far.
func (p *ScriptedProvider) Requests() []harmony.ProviderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]harmony.ProviderRequest(nil), p.requests...)
}

func (p *ScriptedProvider) Stream(_ context.Context, req harmony.ProviderRequest) (harmony.ProviderStream, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if len(p.scripts) == 0 {
		return nil, errors.New("testutil: no script left")
	}
	sc := p.scripts[0]
	p.scripts = p.scripts[1:]
	return &scriptedStream{script: sc, reached: func() { p.once.Do(func() { close(p.Reached) }) }}, nil
}

type scriptedStream struct {
	script  Script
	pos     int
	reached func()
}

func (s *scriptedStream) Next(ctx context.Context) (harmony.StreamDelta, error) {
	if err := ctx.Err(); err != nil {
		return harmony.StreamDelta{}, err
	}
	if s.pos < len(s.script.Deltas) {
		d := s.script.Deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.script.Err != nil {
		return harmony.StreamDelta{}, s.script.Err
	}
	if s.script.Block {
		s.reached()
		<-ctx.Done()
		return harmony.StreamDelta{}, ctx.Err()
	}
	return harmony.StreamDelta{}, io.EOF
}

func (s *scriptedStream) Close() error { return s.script.CloseErr }

// TextDeltas splits text into one content delta per chunk.
func TextDeltas(chunks ...string) []harmony.StreamDelta {
	out := make([]harmony.StreamDelta, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, harmony.StreamDelta{Content: c})
	}
	return out
}

// CallDeltas streams one tool call as a header fragment followed by one
// fragment per argument chunk.
func CallDeltas(index int, id, name string, argChunks ...string) []harmony.StreamDelta {
	out := []harmony.StreamDelta{{ToolCalls: []harmony.ToolCallFragment{{Index: index, ID: id, Name: name}}}}
	for _, c := range argChunks {
		out = append(out, harmony.StreamDelta{ToolCalls: []harmony.ToolCallFragment{{Index: index, Arguments: c}}})
	}
	return out
}

// Drain reads a provider stream to its end and returns the content text and
// every tool-call fragment.
func Drain(ctx context.Context, t *testing.T, stream harmony.ProviderStream) (string, []harmony.ToolCallFragment) {
	t.Helper()
	var text strings.Builder
	var frags []harmony.ToolCallFragment
	for {
		d, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			t.Fatalf("stream.Next failed: %v", err)
		}
		text.WriteString(d.Content)
		frags = append(frags, d.ToolCalls...)
	}
	return text.String(), frags
}

// TestBasicTextGeneration checks a live endpoint streams some text.
func TestBasicTextGeneration(t *testing.T, provider harmony.Provider) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	stream, err := provider.Stream(ctx, harmony.ProviderRequest{
		History: []harmony.Message{harmony.NewUserMessage("Write a haiku")},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	text, _ := Drain(ctx, t, stream)
	if text == "" {
		t.Error("expected non-empty text response")
	}
	t.Logf("response: %q", text)
}

// TestToolCalling checks a live endpoint declares a call for an offered tool.
func TestToolCalling(t *testing.T, provider harmony.Provider) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
	defer cancel()

	stream, err := provider.Stream(ctx, harmony.ProviderRequest{
		History: []harmony.Message{harmony.NewUserMessage("What is 123 + 456? Use the add tool.")},
		Tools: []harmony.ToolSpec{{
			Name:        "add",
			Description: "Add two numbers together",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"a": map[string]any{"type": "number"},
					"b": map[string]any{"type": "number"},
				},
				"required": []string{"a", "b"},
			},
		}},
	})
	if err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	defer stream.Close()

	acc := harmony.NewToolCallAccumulator(nil)
	_, frags := Drain(ctx, t, stream)
	acc.Ingest(harmony.StreamDelta{ToolCalls: frags})
	calls := acc.Finalize()
	if len(calls) == 0 {
		t.Fatal("expected at least one tool call")
	}
	if calls[0].Name != "add" {
		t.Errorf("expected tool name 'add', got %q", calls[0].Name)
	}
	t.Logf("first call: %s(%s)", calls[0].Name, calls[0].Arguments)
}
