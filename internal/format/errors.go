package format

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying adapter failures. Match with errors.Is.
var (
	// ErrUnsupported indicates the file extension maps to no registered
	// adapter. Returned before any parsing attempt.
	ErrUnsupported = errors.New("format: unsupported file type")

	// ErrCorrupt indicates the file could not be parsed as its claimed
	// format. No partial document is returned.
	ErrCorrupt = errors.New("format: corrupt document")

	// ErrEncrypted indicates the document is protected and cannot be
	// read. No partial document is returned.
	ErrEncrypted = errors.New("format: document is encrypted")

	// ErrEmpty indicates the source contained no readable content.
	// Adapters do not fail on empty sources; they return a valid
	// zero-block document instead. The sentinel exists so callers that
	// care can classify a zero-block load themselves.
	ErrEmpty = errors.New("format: document has no content")
)

// FormatError wraps an adapter failure with the offending path and the
// classifying sentinel. errors.Is(err, ErrCorrupt) etc. sees through it.
type FormatError struct {
	Path  string
	Err   error // one of the sentinels above
	Cause error // underlying parser error, may be nil
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Err, e.Path, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Path)
}

func (e *FormatError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func formatErr(path string, sentinel, cause error) *FormatError {
	return &FormatError{Path: path, Err: sentinel, Cause: cause}
}
