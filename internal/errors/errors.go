package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error type mapped to process exit codes.
type Code int

const (
	CodeSuccess      Code = 0
	CodeInternal     Code = 1
	CodeUsage        Code = 2
	CodeAuth         Code = 10
	CodeUnavailable  Code = 12
	CodeResolution   Code = 20
	CodeEstimation   Code = 21
	CodeInsufficient Code = 22
	CodeDispatch     Code = 23
	CodePersist      Code = 24
	CodeTimeout      Code = 25
)

func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeUsage:
		return "usage"
	case CodeAuth:
		return "auth"
	case CodeUnavailable:
		return "chain_unavailable"
	case CodeResolution:
		return "resolution"
	case CodeEstimation:
		return "estimation"
	case CodeInsufficient:
		return "insufficient_balance"
	case CodeDispatch:
		return "dispatch_failed"
	case CodePersist:
		return "persist"
	case CodeTimeout:
		return "timeout"
	default:
		return "internal"
	}
}

// Error is a typed CLI error that carries a stable error code.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func Is(err error, code Code) bool {
	if cliErr, ok := As(err); ok {
		return cliErr.Code == code
	}
	return false
}

func ExitCode(err error) int {
	if err == nil {
		return int(CodeSuccess)
	}
	if cliErr, ok := As(err); ok {
		return int(cliErr.Code)
	}
	return int(CodeInternal)
}
