package tools

import (
	"regexp"
	"strings"

	"github.com/google/shlex"
)

// ShellTraits flags shell commands that tend to flood their output.
type ShellTraits struct {
	RecursiveLS     bool
	RecursiveSearch bool
	BroadSearch     bool
	BulkListing     bool
	HasHead         bool
}

var segmentSep = regexp.MustCompile(`[;&\n]`)

// AnalyzeShellCommand inspects every pipeline stage of command. Stages
// that do not tokenize cleanly fall back to whitespace splitting.
func AnalyzeShellCommand(command string) ShellTraits {
	var t ShellTraits
	for _, segment := range segmentSep.Split(command, -1) {
		for _, stage := range strings.Split(segment, "|") {
			stage = strings.TrimSpace(stage)
			if stage == "" {
				continue
			}
			tokens, err := shlex.Split(stage)
			if err != nil {
				tokens = strings.Fields(stage)
			}
			if len(tokens) == 0 {
				continue
			}
			t.observe(tokens[0], tokens[1:])
		}
	}
	return t
}

func (t *ShellTraits) observe(cmd string, args []string) {
	switch cmd {
	case "head":
		t.HasHead = true
	case "ls":
		for _, opt := range options(args) {
			if strings.HasPrefix(opt, "--") {
				if opt == "--recursive" || strings.HasPrefix(opt, "--recursive=") {
					t.RecursiveLS = true
				}
				continue
			}
			if strings.Contains(opt[1:], "R") {
				t.RecursiveLS = true
			}
		}
		for _, a := range args {
			if a == "-a" || a == "-A" || a == "--all" {
				t.BulkListing = true
			}
		}
	case "find", "tree", "du", "cat", "bat", "less":
		t.BulkListing = true
	case "grep", "egrep", "fgrep":
		t.BroadSearch = true
		for _, opt := range options(args) {
			if strings.HasPrefix(opt, "--") {
				if strings.HasPrefix(opt, "--recursive") {
					t.RecursiveSearch = true
				}
				continue
			}
			if strings.ContainsAny(opt[1:], "rRd") {
				t.RecursiveSearch = true
			}
		}
	case "rg", "ripgrep":
		t.BroadSearch = true
		t.RecursiveSearch = true
	}
}

// options returns the dash-prefixed arguments before a "--" terminator.
func options(args []string) []string {
	var out []string
	for _, a := range args {
		if a == "--" {
			break
		}
		if len(a) > 1 && strings.HasPrefix(a, "-") {
			out = append(out, a)
		}
	}
	return out
}

// notes returns the operator hints for noisy commands.
func (t ShellTraits) notes() []string {
	var out []string
	if t.RecursiveLS {
		out = append(out, "Recursive directory listings are trimmed to protect the context window. Narrow the path, add a depth flag, or pipe into `head` for a quick peek.")
	}
	if t.BulkListing {
		out = append(out, "Large file listings are abbreviated. Consider filters (e.g., `find ... -maxdepth`, `du -h`) or piping through `head`.")
	}
	if t.RecursiveSearch && !t.HasHead {
		out = append(out, "Recursive search results are clipped. Pipe the command into `head` or refine the pattern to keep output manageable.")
	}
	return out
}
