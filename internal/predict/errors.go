package predict

import "errors"

// ErrInvalidResponse is reported when the service answered but the body is
// not a prediction.
var ErrInvalidResponse = errors.New("invalid response")

type ErrorKind string

const (
	KindTransport       ErrorKind = "transport"
	KindInvalidResponse ErrorKind = "invalid_response"
)

// Error is returned next to every Failure outcome.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func transportError(err error) *Error {
	return &Error{Kind: KindTransport, Err: err}
}

func invalidResponse() *Error {
	return &Error{Kind: KindInvalidResponse, Err: ErrInvalidResponse}
}
