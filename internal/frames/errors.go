package frames

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a class of frame channel failure.
type ErrorCode string

// Error codes. ExportFailed and VisitorFailed are per-frame and leave the
// channel usable; the rest end the session.
const (
	CodeSetupFailed      ErrorCode = "SETUP_FAILED"
	CodeExportFailed     ErrorCode = "EXPORT_FAILED"
	CodeHandshakeFailed  ErrorCode = "HANDSHAKE_FAILED"
	CodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	CodeDisconnected     ErrorCode = "DISCONNECTED"
	CodeMapFailed        ErrorCode = "MAP_FAILED"
	CodeVisitorFailed    ErrorCode = "VISITOR_FAILED"
)

// Error is a frame channel or session error.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Sentinels for errors.Is; only the code is compared.
var (
	ErrSetupFailed      = &Error{Code: CodeSetupFailed}
	ErrExportFailed     = &Error{Code: CodeExportFailed}
	ErrHandshakeFailed  = &Error{Code: CodeHandshakeFailed}
	ErrTransportFailure = &Error{Code: CodeTransportFailure}
	ErrDisconnected     = &Error{Code: CodeDisconnected}
	ErrMapFailed        = &Error{Code: CodeMapFailed}
	ErrVisitorFailed    = &Error{Code: CodeVisitorFailed}
)

// NewError creates a frame error.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// SetupError wraps a bind, listen or connect failure.
func SetupError(message string, cause error) *Error {
	return NewError(CodeSetupFailed, message, cause)
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

// HasCode reports whether err is a frame error with the given code.
func HasCode(err error, code ErrorCode) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Code == code
}

// IsRecoverable reports whether the channel stays usable after err.
func IsRecoverable(err error) bool {
	return HasCode(err, CodeVisitorFailed) || HasCode(err, CodeExportFailed)
}

// IsSetup reports whether err happened before a connection existed.
func IsSetup(err error) bool {
	return HasCode(err, CodeSetupFailed)
}
