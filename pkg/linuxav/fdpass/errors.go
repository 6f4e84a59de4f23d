//go:build linux

package fdpass

import "fmt"

// ErrorCode identifies a class of transport failure.
type ErrorCode string

// Transport error codes.
const (
	CodeSendFailed ErrorCode = "SEND_FAILED"
	CodePeerClosed ErrorCode = "PEER_CLOSED"
	CodeMalformed  ErrorCode = "MALFORMED"
)

// Error is a descriptor transport failure. All codes mean the connection can
// no longer be trusted; none of them are retried.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Sentinels for errors.Is; only the code is compared.
var (
	ErrSendFailed = &Error{Code: CodeSendFailed}
	ErrPeerClosed = &Error{Code: CodePeerClosed}
	ErrMalformed  = &Error{Code: CodeMalformed}
)

func newError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
