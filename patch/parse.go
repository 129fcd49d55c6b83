// Package patch implements the directive patch language used by the
// apply_patch tool.
//
// A document looks like
//
//	*** Begin Patch
//	*** Add File: notes/todo.txt
//	+first line
//	+second line
//	*** Update File: old.txt
//	*** Move to: new.txt
//	*** Delete File: stale.txt
//	*** End Patch
//
// Operations are applied one by one as they are parsed. A failure stops
// processing, but operations that already ran stay applied.
package patch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/buchuleaf/harmony-cli/truncate"
)

// OpKind is the directive of an Operation.
type OpKind string

const (
	OpAdd       OpKind = "add"
	OpDelete    OpKind = "delete"
	OpUpdate    OpKind = "update"
	OpOverwrite OpKind = "overwrite"
	OpMoveTo    OpKind = "move_to"
)

// Operation is one parsed directive. Lines holds the content of Add and
// Overwrite blocks with the leading '+' removed. MoveTo is set when an
// Update header is directly followed by a Move to header.
type Operation struct {
	Kind   OpKind
	Path   string
	Lines  []string
	MoveTo string
	Line   int
}

// Document is a fully parsed patch.
type Document struct {
	Operations []Operation
}

var (
	headerRe    = regexp.MustCompile(`(?i)^\*\*\*\s*(Add File|Delete File|Update File|Overwrite File|Move to)\s*:\s*(.+)$`)
	fenceOpenRe = regexp.MustCompile("^```[a-zA-Z0-9]*\n")
)

const (
	beginMarker = "*** begin patch"
	endMarker   = "*** end patch"
)

type scanState int

const (
	stateExpectBegin scanState = iota
	stateExpectDirectiveOrEnd
	stateConsumingContentBlock
	stateDone
)

// scanner walks a patch document line by line and yields one Operation at
// a time.
type scanner struct {
	lines []string
	pos   int
	state scanState
	cur   Operation
}

func newScanner(text string) *scanner {
	return &scanner{lines: truncate.SplitLines(stripFences(text))}
}

// Parse reads the whole document without touching the filesystem.
func Parse(text string) (Document, error) {
	return newScanner(text).all()
}

func (s *scanner) all() (Document, error) {
	var doc Document
	for {
		op, ok, err := s.next()
		if err != nil {
			return doc, err
		}
		if !ok {
			return doc, nil
		}
		doc.Operations = append(doc.Operations, op)
	}
}

// next returns the next operation. ok is false once the end marker has
// been consumed.
func (s *scanner) next() (op Operation, ok bool, err error) {
	for {
		switch s.state {
		case stateExpectBegin:
			if s.pos >= len(s.lines) || !isMarker(s.lines[s.pos], beginMarker) {
				return Operation{}, false, &Error{Kind: KindParse, Line: s.pos + 1, Msg: "Patch must start with '*** Begin Patch'."}
			}
			s.pos++
			s.state = stateExpectDirectiveOrEnd

		case stateExpectDirectiveOrEnd:
			if s.pos >= len(s.lines) {
				return Operation{}, false, &Error{Kind: KindParse, Line: s.pos + 1, Msg: "Patch must end with '*** End Patch'."}
			}
			raw := s.lines[s.pos]
			if isMarker(raw, endMarker) {
				s.pos++
				s.state = stateDone
				return Operation{}, false, nil
			}
			kind, arg, isHeader := matchHeader(raw)
			if !isHeader {
				return Operation{}, false, &Error{Kind: KindParse, Line: s.pos + 1, Msg: "Unrecognized patch directive: " + raw}
			}
			op := Operation{Kind: kind, Path: arg, Line: s.pos + 1}
			s.pos++
			switch kind {
			case OpAdd, OpOverwrite:
				s.cur = op
				s.state = stateConsumingContentBlock
				continue
			case OpUpdate:
				if s.pos < len(s.lines) {
					if k, dst, ok := matchHeader(s.lines[s.pos]); ok && k == OpMoveTo {
						op.MoveTo = dst
						s.pos++
					}
				}
				return op, true, nil
			case OpMoveTo:
				return Operation{}, false, &Error{Kind: KindParse, Line: op.Line, Path: arg,
					Msg: fmt.Sprintf("'*** Move to' must directly follow an '*** Update File' directive: %s", raw)}
			default:
				return op, true, nil
			}

		case stateConsumingContentBlock:
			op := s.cur
			for s.pos < len(s.lines) {
				l := s.lines[s.pos]
				if isMarker(l, endMarker) {
					break
				}
				if _, _, isHeader := matchHeader(l); isHeader {
					break
				}
				if !strings.HasPrefix(l, "+") {
					return Operation{}, false, &Error{Kind: KindParse, Line: s.pos + 1, Path: op.Path,
						Msg: fmt.Sprintf("%s '%s' expects lines starting with '+'. Offending line: %s", blockLabel(op.Kind), op.Path, l)}
				}
				op.Lines = append(op.Lines, l[1:])
				s.pos++
			}
			s.cur = Operation{}
			s.state = stateExpectDirectiveOrEnd
			return op, true, nil

		default:
			return Operation{}, false, nil
		}
	}
}

func blockLabel(k OpKind) string {
	if k == OpOverwrite {
		return "Overwrite File"
	}
	return "Add File"
}

func isMarker(line, marker string) bool {
	return strings.ToLower(strings.TrimSpace(line)) == marker
}

func matchHeader(line string) (OpKind, string, bool) {
	m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	arg := strings.TrimSpace(m[2])
	switch strings.ToLower(m[1]) {
	case "add file":
		return OpAdd, arg, true
	case "delete file":
		return OpDelete, arg, true
	case "update file":
		return OpUpdate, arg, true
	case "overwrite file":
		return OpOverwrite, arg, true
	case "move to":
		return OpMoveTo, arg, true
	}
	return "", "", false
}

// stripFences removes a surrounding markdown fence, with an optional
// language tag, that models like to wrap patches in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if loc := fenceOpenRe.FindStringIndex(text); loc != nil {
		text = text[loc[1]:]
	}
	return strings.TrimSuffix(text, "```")
}
