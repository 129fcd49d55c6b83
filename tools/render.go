package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	harmony "github.com/buchuleaf/harmony-cli"
	"github.com/buchuleaf/harmony-cli/truncate"
)

const (
	capNote     = "_MODEL NOTE: Result automatically truncated to protect the context window (kept first %d of %d chars after safety limits). Consider narrowing the command or asking for specific ranges._\n"
	capNotePy   = "_MODEL NOTE: Result automatically truncated to protect the context window (kept first %d of %d chars after safety limits)._\n"
	noOutputMsg = "The command produced no output.\n"
)

// processView describes how a finished process is rendered.
type processView struct {
	lang    string
	traits  ShellTraits
	capNote string
}

func (v processView) modelBudget(b truncate.Budgets) truncate.Budget {
	switch {
	case v.traits.RecursiveLS || v.traits.RecursiveSearch:
		return b.ModelStrict
	case v.traits.BroadSearch:
		return b.ModelSearch
	default:
		return b.Model
	}
}

func header(exitCode int) string {
	if exitCode == 0 {
		return "## Command Successful\n"
	}
	return fmt.Sprintf("## Command FAILED (Exit Code: %d)\n", exitCode)
}

// renderProcess builds the model and display documents of a process run.
// Each view truncates the raw streams on its own budget.
func renderProcess(res processResult, v processView, b truncate.Budgets) harmony.ToolResult {
	stdout := strings.TrimRight(res.Stdout, "\n")
	stderr := strings.TrimRight(res.Stderr, "\n")
	head := header(res.ExitCode)

	modelOut := truncate.Output(stdout, v.modelBudget(b))
	modelErr := truncate.Output(stderr, b.Model)

	var model strings.Builder
	model.WriteString(head)
	if modelOut != "" {
		model.WriteString("### STDOUT\n")
		model.WriteString(truncate.CodeBlock(modelOut, v.lang))
	}
	if modelErr != "" {
		model.WriteString("### STDERR\n")
		model.WriteString(truncate.CodeBlock(modelErr, "text"))
	}
	if modelOut == "" && modelErr == "" {
		model.WriteString(noOutputMsg)
	}

	modelDoc := model.String()
	if b.ModelMaxChars > 0 && utf8.RuneCountInString(modelDoc) > b.ModelMaxChars {
		payload := combinedPayload(modelOut, modelErr, res.ExitCode)
		modelDoc = head + "### OUTPUT (combined)\n" +
			truncate.CodeBlock(truncate.PrefixRunes(payload, b.ModelMaxChars), "text") +
			fmt.Sprintf(v.capNote, b.ModelMaxChars, utf8.RuneCountInString(payload))
	}

	var display strings.Builder
	display.WriteString(head)
	if res.Stdout != "" {
		display.WriteString("### STDOUT\n")
		display.WriteString(truncate.CodeBlock(truncate.Output(stdout, b.Display), v.lang))
	}
	if res.Stderr != "" {
		display.WriteString("### STDERR\n")
		display.WriteString(truncate.CodeBlock(truncate.Output(stderr, b.Display), "text"))
	}
	if res.Stdout == "" && res.Stderr == "" {
		display.WriteString(noOutputMsg)
	}
	// Hints go after the cut so a long listing cannot push them off screen.
	displayDoc := truncate.Display(display.String(), b.DisplayDocLines)
	for _, note := range v.traits.notes() {
		displayDoc += "_" + note + "_\n"
	}

	return harmony.ToolResult{
		Model:   modelDoc,
		Display: displayDoc,
		IsError: res.ExitCode != 0,
	}
}

// combinedPayload is the flat form used once the markdown view is over
// the character cap.
func combinedPayload(stdout, stderr string, exitCode int) string {
	parts := []string{fmt.Sprintf("[exit_code] %d", exitCode)}
	if stdout != "" {
		parts = append(parts, "[stdout]\n"+strings.TrimRight(stdout, "\n"))
	}
	if stderr != "" {
		parts = append(parts, "[stderr]\n"+strings.TrimRight(stderr, "\n"))
	}
	return strings.Join(parts, "\n\n")
}

// renderRunError renders a process that could not run to completion.
func renderRunError(err error, b truncate.Budgets) harmony.ToolResult {
	var doc string
	var te *TimeoutError
	switch {
	case errors.As(err, &te):
		doc = fmt.Sprintf("## Error\nExecution timed out after %ds.\n", int(te.Timeout.Seconds())) + truncate.CodeBlock(te.Error(), "text")
	case errors.Is(err, context.Canceled):
		doc = "## Error\nExecution interrupted by user.\n"
	default:
		doc = "## Error\nExecution failed:\n" + truncate.CodeBlock(err.Error(), "text")
	}
	return harmony.ToolResult{Model: truncate.ModelView(doc, b), Display: truncate.Display(doc, b.DisplayDocLines), IsError: true}
}
