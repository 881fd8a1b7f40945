package matcher

import (
	"errors"
	"fmt"
)

// ErrFileTooLarge is recorded when a file exceeds the size cap.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// FileError is a recoverable per-file problem. The file is skipped, or its
// scan stops early, and the error is reported as a warning.
type FileError struct {
	// Path is the slash-separated path relative to the repository root.
	Path string

	// Err is the underlying error.
	Err error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
