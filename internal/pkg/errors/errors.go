package errors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalid      = errors.New("invalid")
	ErrConflict     = errors.New("conflict")
	ErrFormat       = errors.New("format error")
	ErrValidation   = errors.New("validation error")
	ErrStorage      = errors.New("storage error")
	ErrTimeout      = errors.New("timeout")
	ErrClosed       = errors.New("closed")
)

// FormatError reports text that could not be parsed, or a required field
// that is missing or mistyped.
type FormatError struct {
	Reason string
	Err    error
}

func NewFormatError(reason string, err error) *FormatError {
	return &FormatError{Reason: reason, Err: err}
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// ValidationError carries the field level messages of a failed validation.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "invalid document: " + strings.Join(e.Errors, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// StorageError wraps a failure of the underlying storage adapter.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsFormat(err error) bool {
	return errors.Is(err, ErrFormat)
}

func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// Messages flattens err into the list shown to the user. Validation errors
// keep their individual messages.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var verr *ValidationError
	if errors.As(err, &verr) && len(verr.Errors) > 0 {
		return append([]string(nil), verr.Errors...)
	}
	return []string{err.Error()}
}
