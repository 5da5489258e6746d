// Package apperr classifies failures into the kinds reported to callers and
// wraps results for the presentation boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure.
type Kind string

const (
	// NotFound covers missing source files and unknown asset or folder ids.
	NotFound Kind = "NotFound"
	// InvalidOperation covers requests that can never succeed as issued.
	InvalidOperation Kind = "InvalidOperation"
	// SourceUnavailable means the canonical original could not be read.
	SourceUnavailable Kind = "SourceUnavailable"
	// StorageFailure covers disk and database write failures.
	StorageFailure Kind = "StorageFailure"
	// Conflict is reported when an operation is rejected instead of queued.
	Conflict Kind = "Conflict"
	// Internal is anything not classified above.
	Internal Kind = "Internal"
)

// Error is a classified error. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a classified error with a formatted message.
func New(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err. A nil err yields nil.
func Wrap(kind Kind, op string, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// KindOf returns the kind of the outermost classified error in err's chain,
// or Internal when there is none. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind onto a response status code.
func HTTPStatus(kind Kind) int {
	switch kind {
	case "":
		return http.StatusOK
	case NotFound:
		return http.StatusNotFound
	case InvalidOperation:
		return http.StatusBadRequest
	case SourceUnavailable:
		return http.StatusUnprocessableEntity
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
