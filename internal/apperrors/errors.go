// Package apperrors defines the error taxonomy shared by services and
// handlers. Every failure is scoped to the current user action; nothing here
// is fatal to the process.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a template, document or session does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError blocks an action until the user corrects their input.
// Fields lists every offending label, not just the first.
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Message, strings.Join(e.Fields, ", "))
}

// Validation builds a ValidationError.
func Validation(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// StorageError wraps an upload, download or query failure. The cause is for
// logs; clients only see a generic retry message.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Storage wraps err as a StorageError for op. A nil err stays nil.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// PartialWriteError means a metadata write failed after the blob upload
// succeeded. CompensationErr is set when removing the uploaded blob also
// failed and the file was left orphaned.
type PartialWriteError struct {
	Path            string
	Err             error
	CompensationErr error
}

func (e *PartialWriteError) Error() string {
	if e.CompensationErr != nil {
		return fmt.Sprintf("write of %s failed: %v (orphaned blob: %v)", e.Path, e.Err, e.CompensationErr)
	}
	return fmt.Sprintf("write of %s failed: %v", e.Path, e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// StampingError is a per-field failure while stamping a PDF. It is logged
// and the field is skipped.
type StampingError struct {
	Label string
	Err   error
}

func (e *StampingError) Error() string {
	return fmt.Sprintf("stamping field %q: %v", e.Label, e.Err)
}

func (e *StampingError) Unwrap() error { return e.Err }
