package patch

// ErrorKind classifies a patch failure.
type ErrorKind string

const (
	KindParse         ErrorKind = "parse"
	KindPath          ErrorKind = "path"
	KindMissingTarget ErrorKind = "missing_target"
	KindIO            ErrorKind = "io"
	KindCanceled      ErrorKind = "canceled"
)

// Error is returned for every patch failure. Msg is written for the model
// and is what Error returns. Line is the 1-based line of the offending
// input line, or 0 when the failure is not tied to one.
type Error struct {
	Kind ErrorKind
	Line int
	Path string
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }
