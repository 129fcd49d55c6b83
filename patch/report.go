package patch

import (
	"fmt"
	"strings"

	"github.com/buchuleaf/harmony-cli/truncate"
)

// FileChange is the outcome of one committed operation.
type FileChange struct {
	Kind    OpKind
	Path    string
	MovedTo string
	Added   int
	Removed int
	// Diff is the unified diff preview, already capped per file.
	Diff string
}

// Net is Added minus Removed.
func (c FileChange) Net() int { return c.Added - c.Removed }

func (c FileChange) verb() string {
	switch c.Kind {
	case OpAdd:
		return "Added"
	case OpDelete:
		return "Deleted"
	case OpOverwrite:
		return "Overwrote"
	default:
		return "Updated"
	}
}

// displayPath is where the file lives after the operation.
func (c FileChange) displayPath() string {
	if c.MovedTo != "" {
		return c.MovedTo
	}
	return c.Path
}

func (c FileChange) moved() string {
	if c.MovedTo == "" {
		return ""
	}
	return fmt.Sprintf(" (moved from `%s`)", c.Path)
}

// Summary is the one-line description used in report bullet lists.
func (c FileChange) Summary() string {
	return fmt.Sprintf("%s %s%s (+%d/-%d, net %+d)", c.verb(), c.displayPath(), c.moved(), c.Added, c.Removed, c.Net())
}

func (c FileChange) detail() string {
	diff := c.Diff
	if strings.TrimSpace(diff) == "" {
		diff = "(no visible diff)"
	}
	return fmt.Sprintf("### %s: `%s`%s\n- Lines added: **%d**, removed: **%d**, net: **%+d**\n",
		c.verb(), c.displayPath(), c.moved(), c.Added, c.Removed, c.Net()) + truncate.CodeBlock(diff, "diff")
}

// Report collects the committed operations of one Apply call.
type Report struct {
	Changes  []FileChange
	Warnings []string
}

// Markdown renders the full, untruncated report. At most maxSections
// per-file detail blocks are included; the rest are noted.
func (r *Report) Markdown(maxSections int) string {
	var b strings.Builder
	if len(r.Changes) > 0 {
		b.WriteString("## ✅ Patch Applied\n")
	} else {
		b.WriteString("## ⚠️ Patch Processed (no changes)\n")
	}

	if len(r.Changes) == 0 {
		b.WriteString("_(no changes)_")
	}
	for i, c := range r.Changes {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- " + c.Summary())
	}

	details := make([]string, 0, len(r.Changes)+1)
	for _, c := range r.Changes {
		details = append(details, c.detail())
	}
	warnings := append([]string(nil), r.Warnings...)
	if maxSections > 0 && len(details) > maxSections {
		omitted := len(details) - maxSections
		details = append(details[:maxSections], fmt.Sprintf(
			"_NOTE: %d additional file sections hidden to protect the context window. Ask for specific files or smaller hunks if you need the rest._", omitted))
		warnings = append(warnings, fmt.Sprintf("Truncated %d additional file section(s) to keep output manageable.", omitted))
	}
	if len(details) == 0 {
		details = append(details, "_(no details)_")
	}

	if len(warnings) > 0 {
		b.WriteString("\n### Warnings\n")
		for _, w := range warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	b.WriteString("\n\n---\n")
	b.WriteString(strings.Join(details, "\n\n"))
	return b.String()
}

// Render returns the model and display views of the report.
func (r *Report) Render(b truncate.Budgets) (model, display string) {
	b = b.WithDefaults()
	full := r.Markdown(b.MaxPatchSections)
	model, _ = truncate.CapModel(full, b.ModelMaxChars, fmt.Sprintf(
		"\n_MODEL NOTE: Patch result truncated to protect context (kept first %d of %d chars). Ask for specific files or smaller diffs if needed._\n",
		b.ModelMaxChars, len([]rune(full))))
	return model, truncate.Display(full, b.DisplayDocLines)
}

// RenderError renders a failed Apply. Operations committed before err are
// listed after the error so the model knows they took effect.
func RenderError(r *Report, err error, b truncate.Budgets) (model, display string) {
	b = b.WithDefaults()
	doc := truncate.ErrorDoc(err.Error())
	if r != nil && len(r.Changes) > 0 {
		var sb strings.Builder
		sb.WriteString(doc)
		sb.WriteString("\n\n### Applied before the error\n")
		for _, c := range r.Changes {
			sb.WriteString("- " + c.Summary() + "\n")
		}
		doc = sb.String()
	}
	return truncate.ModelView(doc, b), truncate.Display(doc, b.DisplayDocLines)
}
