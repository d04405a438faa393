package domain

import (
	"errors"
	"fmt"
)

var (
	ErrExtractionNotFound  = errors.New("extraction not found")
	ErrProfileNotFound     = errors.New("field profile not found")
	ErrUnknownField        = errors.New("unknown field")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file exceeds maximum allowed size")
	ErrInputDecode         = errors.New("input could not be decoded")
	ErrMalformedFieldSpec  = errors.New("malformed field spec")
	ErrRegexTimeout        = errors.New("regex evaluation timed out")
	ErrEntityUnavailable   = errors.New("entity extraction unavailable")
	ErrBackendUnavailable  = errors.New("backend unavailable")
	ErrInvalidThreshold    = errors.New("confidence threshold must be within 0..100")
)

// InputDecodeError reports a document that could not be read or decoded.
// It is fatal to that document only.
type InputDecodeError struct {
	Source string
	Err    error
}

func (e *InputDecodeError) Error() string {
	return fmt.Sprintf("decoding %s: %v", e.Source, e.Err)
}

func (e *InputDecodeError) Unwrap() []error {
	return []error{ErrInputDecode, e.Err}
}

// NewInputDecodeError wraps err as an InputDecodeError for source.
func NewInputDecodeError(source string, err error) *InputDecodeError {
	return &InputDecodeError{Source: source, Err: err}
}
