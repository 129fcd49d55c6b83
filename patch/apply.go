package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/buchuleaf/harmony-cli/truncate"
)

// Applier applies patch documents below a root directory.
type Applier struct {
	root          string
	budgets       truncate.Budgets
	logger        *zap.Logger
	validateFirst bool
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger used for per-operation records.
func WithLogger(l *zap.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// WithBudgets sets the limits used for diff previews.
func WithBudgets(b truncate.Budgets) Option {
	return func(a *Applier) { a.budgets = b.WithDefaults() }
}

// WithValidateFirst parses the whole document before the first operation
// runs, so a malformed document changes nothing. Operations that fail at
// apply time (a missing Delete target, say) still leave earlier ones
// applied.
func WithValidateFirst() Option {
	return func(a *Applier) { a.validateFirst = true }
}

// New returns an Applier rooted at root.
func New(root string, opts ...Option) *Applier {
	a := &Applier{root: root, budgets: truncate.DefaultBudgets()}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// Apply is shorthand for New(root, opts...).Apply(ctx, text).
func Apply(ctx context.Context, root, text string, opts ...Option) (*Report, error) {
	return New(root, opts...).Apply(ctx, text)
}

// Apply runs text against the filesystem. The returned Report is never nil
// and lists the operations committed before any error.
func (a *Applier) Apply(ctx context.Context, text string) (*Report, error) {
	report := &Report{}
	if strings.TrimSpace(text) == "" {
		return report, &Error{Kind: KindParse, Msg: "`patch` must be a non-empty string."}
	}

	sc := newScanner(text)
	if a.validateFirst {
		doc, err := sc.all()
		if err != nil {
			return report, err
		}
		for _, op := range doc.Operations {
			if err := a.applyOp(ctx, op, report); err != nil {
				return report, err
			}
		}
		return report, nil
	}

	for {
		op, ok, err := sc.next()
		if err != nil {
			return report, err
		}
		if !ok {
			return report, nil
		}
		if err := a.applyOp(ctx, op, report); err != nil {
			return report, err
		}
	}
}

func (a *Applier) applyOp(ctx context.Context, op Operation, report *Report) error {
	if err := ctx.Err(); err != nil {
		return &Error{Kind: KindCanceled, Line: op.Line, Path: op.Path, Msg: "Patch application canceled.", Err: err}
	}

	var (
		change FileChange
		err    error
	)
	switch op.Kind {
	case OpAdd, OpOverwrite:
		change, err = a.write(op)
	case OpDelete:
		change, err = a.delete(op)
	case OpUpdate:
		change, err = a.update(op)
	default:
		return &Error{Kind: KindParse, Line: op.Line, Msg: fmt.Sprintf("Unrecognized patch directive: %s", op.Kind)}
	}
	if err != nil {
		a.logger.Warn("patch operation failed", zap.String("op", string(op.Kind)), zap.String("path", op.Path), zap.Error(err))
		return err
	}

	report.Changes = append(report.Changes, change)
	a.logger.Info("patch operation applied",
		zap.String("op", string(op.Kind)),
		zap.String("path", change.Path),
		zap.String("moved_to", change.MovedTo),
		zap.Int("added", change.Added),
		zap.Int("removed", change.Removed))
	return nil
}

func (a *Applier) write(op Operation) (FileChange, error) {
	label := "Add"
	if op.Kind == OpOverwrite {
		label = "Overwrite"
	}
	rel, abs, err := a.resolve(label, op)
	if err != nil {
		return FileChange{}, err
	}

	old, mode, err := readLines(abs)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		mode = 0o644
	case err != nil:
		return FileChange{}, ioError(op, rel, err)
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return FileChange{}, ioError(op, rel, err)
	}
	if err := os.WriteFile(abs, []byte(joinLines(op.Lines)), mode); err != nil {
		return FileChange{}, ioError(op, rel, err)
	}

	from := rel
	if op.Kind == OpAdd {
		from = "/dev/null"
	}
	return FileChange{
		Kind:    op.Kind,
		Path:    rel,
		Added:   len(op.Lines),
		Removed: len(old),
		Diff:    a.diff(old, op.Lines, from, rel),
	}, nil
}

func (a *Applier) delete(op Operation) (FileChange, error) {
	rel, abs, err := a.resolve("Delete", op)
	if err != nil {
		return FileChange{}, err
	}
	old, _, err := readLines(abs)
	if err != nil {
		if isMissing(err) {
			return FileChange{}, missingTarget(op, rel, "Delete")
		}
		return FileChange{}, ioError(op, rel, err)
	}
	if err := os.Remove(abs); err != nil {
		return FileChange{}, ioError(op, rel, err)
	}
	return FileChange{
		Kind:    OpDelete,
		Path:    rel,
		Removed: len(old),
		Diff:    a.diff(old, nil, rel, "/dev/null"),
	}, nil
}

// update rewrites the target with its own bytes and optionally renames it.
func (a *Applier) update(op Operation) (FileChange, error) {
	rel, abs, err := a.resolve("Update", op)
	if err != nil {
		return FileChange{}, err
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		if err == nil || isMissing(err) {
			return FileChange{}, missingTarget(op, rel, "Update")
		}
		return FileChange{}, ioError(op, rel, err)
	}

	var dstRel, dstAbs string
	if op.MoveTo != "" {
		dstRel, dstAbs, err = a.resolve("Move to", Operation{Kind: OpMoveTo, Path: op.MoveTo, Line: op.Line + 1})
		if err != nil {
			return FileChange{}, err
		}
		if dstAbs != abs {
			if _, err := os.Lstat(dstAbs); err == nil {
				return FileChange{}, &Error{Kind: KindPath, Line: op.Line + 1, Path: op.MoveTo,
					Msg: fmt.Sprintf("Move destination already exists: %s", dstRel)}
			}
		}
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return FileChange{}, ioError(op, rel, err)
	}
	if err := os.WriteFile(abs, data, info.Mode().Perm()); err != nil {
		return FileChange{}, ioError(op, rel, err)
	}

	change := FileChange{Kind: OpUpdate, Path: rel}
	if dstAbs != "" && dstAbs != abs {
		if err := os.MkdirAll(filepath.Dir(dstAbs), 0o755); err != nil {
			return FileChange{}, ioError(op, dstRel, err)
		}
		if err := os.Rename(abs, dstAbs); err != nil {
			return FileChange{}, ioError(op, dstRel, err)
		}
		change.MovedTo = dstRel
	}
	return change, nil
}

// resolve checks that op.Path stays below the root.
func (a *Applier) resolve(label string, op Operation) (rel, abs string, err error) {
	p := filepath.FromSlash(strings.TrimSpace(op.Path))
	if !filepath.IsLocal(p) {
		return "", "", &Error{Kind: KindPath, Line: op.Line, Path: op.Path,
			Msg: fmt.Sprintf("Invalid %s path '%s': Parent traversal or absolute paths are not allowed.", label, op.Path)}
	}
	clean := filepath.Clean(p)
	return filepath.ToSlash(clean), filepath.Join(a.root, clean), nil
}

func (a *Applier) diff(before, after []string, from, to string) string {
	text := unifiedDiff(before, after, from, to)
	if text == "" {
		return ""
	}
	return truncate.Output(text, truncate.Budget{MaxLines: a.budgets.MaxDiffLinesPerFile, Note: truncate.DisplayNote})
}

func readLines(path string) ([]string, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return nil, 0, &fs.PathError{Op: "read", Path: path, Err: errIsDir}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	return truncate.SplitLines(string(data)), info.Mode().Perm(), nil
}

var errIsDir = errors.New("is a directory")

func isMissing(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, errIsDir)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

func missingTarget(op Operation, rel, label string) error {
	return &Error{Kind: KindMissingTarget, Line: op.Line, Path: op.Path,
		Msg: fmt.Sprintf("%s target does not exist or is a directory: %s", label, rel)}
}

func ioError(op Operation, rel string, err error) error {
	return &Error{Kind: KindIO, Line: op.Line, Path: op.Path, Msg: fmt.Sprintf("Failed to apply %s on %s: %v", op.Kind, rel, err), Err: err}
}
