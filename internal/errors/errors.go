package errors

import (
	stderrors "errors"
	"fmt"
)

type ErrorType string

const (
	ErrorTypeEmptyPath            ErrorType = "EMPTY_PATH"
	ErrorTypeSubdirectoryNotFound ErrorType = "SUBDIRECTORY_NOT_FOUND"
	ErrorTypeFileNotFound         ErrorType = "FILE_NOT_FOUND"
	ErrorTypeNotFound             ErrorType = "NOT_FOUND"
	ErrorTypeValidation           ErrorType = "VALIDATION"
	ErrorTypeStorage              ErrorType = "STORAGE"
	ErrorTypeTransaction          ErrorType = "TRANSACTION"
)

// Sentinels for errors.Is. Matching is by Type only.
var (
	ErrEmptyPath            = &Error{Type: ErrorTypeEmptyPath, Message: "no path given"}
	ErrSubdirectoryNotFound = &Error{Type: ErrorTypeSubdirectoryNotFound, Message: "subdirectory not found"}
	ErrFileNotFound         = &Error{Type: ErrorTypeFileNotFound, Message: "file not found"}
	ErrNotFound             = &Error{Type: ErrorTypeNotFound, Message: "not found"}
	ErrValidation           = &Error{Type: ErrorTypeValidation, Message: "validation failed"}
	ErrStorage              = &Error{Type: ErrorTypeStorage, Message: "storage error"}
	ErrTransaction          = &Error{Type: ErrorTypeTransaction, Message: "transaction error"}
)

type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	Err     error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Type == e.Type
}

// TypeOf returns the type of the outermost *Error in err's chain, or "" if
// there is none.
func TypeOf(err error) ErrorType {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Type
	}
	return ""
}

func EmptyPath() *Error {
	return &Error{
		Type:    ErrorTypeEmptyPath,
		Message: "no path given",
	}
}

func SubdirectoryNotFound(name string) *Error {
	return &Error{
		Type:    ErrorTypeSubdirectoryNotFound,
		Message: "subdirectory not found",
		Details: name,
	}
}

func FileNotFound(name string) *Error {
	return &Error{
		Type:    ErrorTypeFileNotFound,
		Message: "file not found",
		Details: name,
	}
}

func NotFound(message string) *Error {
	return &Error{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

func ValidationError(message string, details any) *Error {
	return &Error{
		Type:    ErrorTypeValidation,
		Message: message,
		Details: details,
	}
}

// Storage wraps an error raised by the storage layer. The wrapped error
// stays reachable through errors.Is and errors.As.
func Storage(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeStorage,
		Message: message,
		Err:     err,
	}
}

func Transaction(message string, err error) *Error {
	return &Error{
		Type:    ErrorTypeTransaction,
		Message: message,
		Err:     err,
	}
}
