package synth

import "fmt"

// Code is a short machine-readable failure classification surfaced on
// job records and used by the dispatcher's retry policy.
type Code string

const (
	CodeTransport Code = "transport_error"
	CodeProtocol  Code = "protocol_error"
	CodeTimeout   Code = "timeout"
	CodeProvider  Code = "provider_error"
	CodeConfig    Code = "config_error"
)

// Error is a classified synthesis failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func transportError(msg string, err error) *Error {
	return &Error{Code: CodeTransport, Message: msg, Err: err}
}

func protocolError(msg string) *Error {
	return &Error{Code: CodeProtocol, Message: msg}
}

func timeoutError(msg string) *Error {
	return &Error{Code: CodeTimeout, Message: msg}
}

func providerError(msg string) *Error {
	return &Error{Code: CodeProvider, Message: msg}
}

func configError(msg string) *Error {
	return &Error{Code: CodeConfig, Message: msg}
}
