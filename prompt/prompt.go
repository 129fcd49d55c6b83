// Package prompt renders the Harmony system and developer messages.
package prompt

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	harmony "github.com/buchuleaf/harmony-cli"
)

const (
	DefaultKnowledgeCutoff = "2024-06"
	DefaultReasoning       = "high"
)

// Options controls the system message.
type Options struct {
	KnowledgeCutoff string
	Reasoning       string
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.KnowledgeCutoff == "" {
		o.KnowledgeCutoff = DefaultKnowledgeCutoff
	}
	if o.Reasoning == "" {
		o.Reasoning = DefaultReasoning
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// SystemMessage renders the Harmony system message.
func SystemMessage(opts Options, toolsExist bool) string {
	opts = opts.withDefaults()
	lines := []string{
		"You are ChatGPT, a large language model trained by OpenAI.",
		"Knowledge cutoff: " + opts.KnowledgeCutoff,
		"Current date: " + opts.Now().Format("2006-01-02"),
		"Reasoning: " + opts.Reasoning,
		"# Valid channels: analysis, commentary, final. Channel must be included for every message.",
	}
	if toolsExist {
		lines = append(lines, "Calls to these tools must go to the commentary channel: 'functions'.")
	}
	return strings.Join(lines, "\n")
}

// DeveloperMessage renders the instructions and the tool namespace.
func DeveloperMessage(instructions string, tools []harmony.ToolSpec) string {
	return "# Instructions\n" + instructions + "\n\n# Tools\n" + Namespace(tools)
}

// DefaultInstructions is the developer instruction block for a console
// rooted at root.
func DefaultInstructions(root string) string {
	return "You are a helpful terminal assistant that can execute code and edit files with the provided tools.\n\nRoot directory: " + root
}

// Namespace renders tools as the TypeScript-like `functions` namespace.
func Namespace(tools []harmony.ToolSpec) string {
	lines := []string{"## functions", "namespace functions {"}
	for _, t := range tools {
		lines = append(lines, "// "+t.Description)
		props, _ := t.Parameters["properties"].(map[string]any)
		if len(props) == 0 {
			lines = append(lines, fmt.Sprintf("type %s = () => any;", t.Name))
			lines = append(lines, "")
			continue
		}

		required := stringList(t.Parameters["required"])
		var body []string
		for _, name := range propertyOrder(props, required) {
			spec, _ := props[name].(map[string]any)
			if desc, ok := spec["description"].(string); ok && desc != "" {
				body = append(body, "  // "+desc)
			}
			marker := "?"
			if slices.Contains(required, name) {
				marker = ""
			}
			line := fmt.Sprintf("  %s%s: %s,", name, marker, tsType(spec))
			if def, ok := spec["default"]; ok {
				if raw, err := json.Marshal(def); err == nil {
					line += " // default: " + string(raw)
				}
			}
			body = append(body, line)
		}
		lines = append(lines, fmt.Sprintf("type %s = (_: {\n%s\n}) => any;", t.Name, strings.Join(body, "\n")))
		lines = append(lines, "")
	}
	lines = append(lines, "} // namespace functions")
	return strings.Join(lines, "\n")
}

// propertyOrder lists required properties in declaration order, then the
// rest sorted by name.
func propertyOrder(props map[string]any, required []string) []string {
	var order []string
	for _, r := range required {
		if _, ok := props[r]; ok {
			order = append(order, r)
		}
	}
	var rest []string
	for name := range props {
		if !slices.Contains(required, name) {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

func tsType(spec map[string]any) string {
	switch spec["type"] {
	case "string":
		if enum := stringList(spec["enum"]); len(enum) > 0 {
			return `"` + strings.Join(enum, `" | "`) + `"`
		}
		return "string"
	case "number", "integer":
		return "number"
	case "boolean":
		return "boolean"
	case "array":
		items, ok := spec["items"].(map[string]any)
		if !ok {
			return "any[]"
		}
		return tsType(items) + "[]"
	case "object":
		return "object"
	}
	return "any"
}

func stringList(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, x := range vs {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
