package harmony

import "errors"

var (
	ErrNoProvider   = errors.New("harmony: provider is required")
	ErrToolNotFound = errors.New("harmony: tool not found")
	ErrStreamClosed = errors.New("harmony: stream closed")
)
