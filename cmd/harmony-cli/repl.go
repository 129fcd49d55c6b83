package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/channel"
	"github.com/buchuleaf/harmony-cli/internal/tokens"
	"github.com/buchuleaf/harmony-cli/internal/transcript"
	"github.com/buchuleaf/harmony-cli/prompt"
)

type sessionConfig struct {
	Provider  harmony.Provider
	Executor  *harmony.ToolExecutor
	Model     string
	Prompt    prompt.Options
	Root      string
	ExportDir string
	Out       io.Writer
	Markdown  *glamour.TermRenderer
	Tokens    *tokens.Estimator
	Logger    *zap.Logger
	Now       func() time.Time
}

// session holds one conversation. history[0] is always the developer
// message.
type session struct {
	sessionConfig
	system  string
	history []harmony.Message
}

func newSession(cfg sessionConfig) *session {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tokens == nil {
		cfg.Tokens = tokens.New(cfg.Logger)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Prompt.Now == nil {
		cfg.Prompt.Now = cfg.Now
	}
	specs := cfg.Executor.Specs()
	s := &session{
		sessionConfig: cfg,
		system:        prompt.SystemMessage(cfg.Prompt, len(specs) > 0),
	}
	s.reset()
	return s
}

func (s *session) reset() {
	dev := prompt.DeveloperMessage(prompt.DefaultInstructions(s.Root), s.Executor.Specs())
	s.history = []harmony.Message{harmony.NewUserMessage(dev)}
}

func (s *session) printf(format string, args ...any) {
	fmt.Fprintf(s.Out, format, args...)
}

// Run reads input until EOF, "exit" or ctx ends. Interrupts cancel the
// running response, or discard the input line when idle.
func (s *session) Run(ctx context.Context, lines <-chan string, interrupts <-chan os.Signal) error {
	s.printf("%s\n", bannerStyle.Render(
		titleStyle.Render("Harmony CLI")+"\n\n"+
			dimStyle.Render("Commands: /export md [path], /export json [path], /reset")+"\n"+
			dimStyle.Render("Ctrl+C to interrupt the current response, Ctrl+D to exit.")))

	for {
		input, err := s.readInput(ctx, lines, interrupts)
		if err != nil {
			s.printf("\n%s\n", errorStyle.Render("Exiting."))
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		cmd := strings.TrimSpace(input)
		switch {
		case strings.EqualFold(cmd, "exit"):
			s.printf("\n%s\n", errorStyle.Render("Exiting."))
			return nil
		case strings.HasPrefix(cmd, "/export"):
			s.export(cmd)
		case cmd == "/reset":
			s.reset()
			s.printf("%s\n", dimStyle.Render("Conversation cleared."))
		default:
			s.turn(ctx, input, interrupts)
		}
	}
}

func (s *session) readInput(ctx context.Context, lines <-chan string, interrupts <-chan os.Signal) (string, error) {
	var parts []string
	s.printf("\n%s ", userStyle.Render("You:"))
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-interrupts:
			parts = nil
			s.printf("\n%s\n", dimStyle.Render("Input interrupted. Press Ctrl+D or type 'exit' to quit."))
			s.printf("\n%s ", userStyle.Render("You:"))
		case line, ok := <-lines:
			if !ok {
				return "", io.EOF
			}
			if strings.HasSuffix(line, `\`) {
				parts = append(parts, strings.TrimSuffix(line, `\`))
				s.printf("... ")
				continue
			}
			return strings.Join(append(parts, line), "\n"), nil
		}
	}
}

func (s *session) export(cmd string) {
	format, path, err := transcript.ParseCommand(cmd)
	if err == nil {
		if path == "" {
			path = transcript.DefaultPath(s.ExportDir, format, s.Now())
		}
		err = transcript.Export(format, path, s.system, s.history, s.Now())
	}
	if err != nil {
		s.Logger.Warn("export failed", zap.Error(err))
		s.printf("%s %v\n", errorStyle.Render("Export error:"), err)
		return
	}
	s.Logger.Info("transcript exported", zap.String("path", path), zap.String("format", string(format)))
	s.printf("%s %s\n", successStyle.Render("Saved transcript to"), path)
}

// turn runs steps until the model stops calling tools, the operator
// interrupts, or a step fails.
func (s *session) turn(ctx context.Context, input string, interrupts <-chan os.Signal) {
	s.history = append(s.history, harmony.NewUserMessage(input))
	for {
		res, err := s.step(ctx, interrupts)
		s.history = append(s.history, res...)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				s.Logger.Error("step failed", zap.Error(err))
				s.printf("\n%s %v\n", errorStyle.Render("Error:"), err)
			}
			return
		}
		if !res.HasToolCall() {
			return
		}
	}
}

func (s *session) step(ctx context.Context, interrupts <-chan os.Signal) (harmony.StepResult, error) {
	view := &turnView{s: s}
	view.promptTokens = s.Tokens.CountRequest(s.Model, s.system, s.history, s.Executor.Specs())

	stream, err := harmony.StepStreamed(ctx, harmony.StepRequest{
		Provider:     s.Provider,
		SystemPrompt: s.system,
		History:      s.history,
		Executor:     s.Executor,
	}, harmony.WithLogger(s.Logger.Named("step")))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-interrupts:
			stream.Cancel()
		case <-done:
		}
	}()

	s.printf("\n%s\n", assistantStyle.Render("Assistant:"))
	for {
		ev, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if ev.Type == harmony.StepEventDelta {
			view.delta(ev.Delta)
		}
	}
	return stream.Result()
}

// turnView prints one step as it streams.
type turnView struct {
	s            *session
	promptTokens int
	text         strings.Builder
	openCalls    []int
	toolsHeader  bool
}

func (v *turnView) delta(d harmony.MessageDelta) {
	s := v.s
	switch d := d.(type) {
	case harmony.ThinkingDelta:
		s.printf("%s", thinkingStyle.Render(d.Delta))
	case harmony.TextDelta:
		v.text.WriteString(d.Delta)
		s.printf("%s", d.Delta)
	case harmony.ToolCallDelta:
		if d.First {
			name := d.Name
			if name == "" {
				name = "unknown"
			}
			s.printf("\n%s", toolCallStyle.Render("Calling Tool: "+name+"("))
			v.openCalls = append(v.openCalls, d.Index)
		}
		if d.ArgsDelta != "" {
			s.printf("%s", d.ArgsDelta)
		}
	case harmony.StepStatusDelta:
		v.status(d)
	case harmony.ToolExecStartDelta:
		v.header()
	case harmony.ToolExecEndDelta:
		v.header()
		s.printf("%s\n", toolHeaderStyle.Render(fmt.Sprintf("Tool Result: %s (%.2fs)", d.Call.Name, d.Duration.Seconds())))
		s.printf("%s\n", v.render(d.Result.Display))
	}
}

func (v *turnView) status(d harmony.StepStatusDelta) {
	s := v.s
	for range v.openCalls {
		s.printf("%s\n", toolCallStyle.Render(")"))
	}
	v.openCalls = nil
	if d.Interrupted {
		s.printf("\n— interrupted —")
	}
	s.printf("\n")

	text := v.text.String()
	if strings.Contains(text, "<|channel|>") {
		if final := channel.Text(channel.Split(text), channel.Final); final != "" {
			s.printf("%s", v.render(final))
		}
	}

	in, out := v.promptTokens, s.Tokens.Count(text)
	if d.Usage != nil && d.Usage.InputTokens > 0 {
		in, out = d.Usage.InputTokens, d.Usage.OutputTokens
	}
	state := "(complete)"
	if d.Interrupted {
		state = "(interrupted)"
	}
	s.printf("%s\n", dimStyle.Render(fmt.Sprintf("⏱ %.2fs  |  in ≈ %d tok  |  out ≈ %d tok  |  %s",
		d.Duration.Seconds(), in, out, state)))
}

func (v *turnView) header() {
	if v.toolsHeader {
		return
	}
	v.toolsHeader = true
	v.s.printf("\n%s\n%s\n", "Tool Results", strings.Repeat("-", len("Tool Results")))
}

func (v *turnView) render(md string) string {
	if strings.TrimSpace(md) == "" {
		return "(no output)"
	}
	if v.s.Markdown == nil {
		return md
	}
	out, err := v.s.Markdown.Render(md)
	if err != nil {
		return md
	}
	return out
}
