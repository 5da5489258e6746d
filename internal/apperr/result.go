package apperr

import "errors"

// Result is the envelope returned across the presentation boundary:
// {ok:true,value} on success, {ok:false,errorKind,message} on failure.
// value is always present so an empty list encodes as [].
type Result[T any] struct {
	OK        bool   `json:"ok"`
	Value     T      `json:"value"`
	ErrorKind Kind   `json:"errorKind,omitempty"`
	Message   string `json:"message,omitempty"`
}

// ResultOf builds the envelope for a value/error pair.
func ResultOf[T any](value T, err error) Result[T] {
	if err != nil {
		return Fail[T](err)
	}
	return Result[T]{OK: true, Value: value}
}

// Fail builds a failed envelope.
func Fail[T any](err error) Result[T] {
	msg := ""
	if err != nil {
		msg = err.Error()
		var e *Error
		if errors.As(err, &e) && e.Msg != "" {
			msg = e.Msg
		}
	}
	return Result[T]{OK: false, ErrorKind: KindOf(err), Message: msg}
}

// Status is the HTTP status matching the envelope.
func (r Result[T]) Status() int {
	if r.OK {
		return HTTPStatus("")
	}
	return HTTPStatus(r.ErrorKind)
}
