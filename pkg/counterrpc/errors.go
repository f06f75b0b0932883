package counterrpc

import (
	"errors"
	"fmt"
)

// Error represents a JSON-RPC 2.0 error type.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	// InternalServerErrorCode is returned for internal RPC server error.
	InternalServerErrorCode = -32603
	// BadRequestCode is returned on parse error.
	BadRequestCode = -32700
	// InvalidRequestCode is returned on invalid request.
	InvalidRequestCode = -32600
	// MethodNotFoundCode is returned on unknown method calling.
	MethodNotFoundCode = -32601
	// InvalidParamsCode is returned on request with invalid params.
	InvalidParamsCode = -32602
)

// Application-specific error codes. The precondition code is the documented
// way for callers to tell a rejected short message from any other failure.
const (
	// ErrPreconditionFailedCode is returned when the message body fails the
	// minimum length precondition.
	ErrPreconditionFailedCode = -101
	// ErrOverflowCode is returned when the increment overflows the counter.
	ErrOverflowCode = -102
	// ErrOutOfGasCode is returned when the invocation exceeds its execution
	// credit limit.
	ErrOutOfGasCode = -103
)

var (
	// ErrInvalidParams represents a generic "Invalid params" error.
	ErrInvalidParams = NewInvalidParamsError("invalid params")
)

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, message string, data string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates a new error with code -32700.
func NewParseError(data string) *Error {
	return NewError(BadRequestCode, "Parse error", data)
}

// NewInvalidRequestError creates a new error with code -32600.
func NewInvalidRequestError(data string) *Error {
	return NewError(InvalidRequestCode, "Invalid request", data)
}

// NewMethodNotFoundError creates a new error with code -32601.
func NewMethodNotFoundError(data string) *Error {
	return NewError(MethodNotFoundCode, "Method not found", data)
}

// NewInvalidParamsError creates a new error with code -32602.
func NewInvalidParamsError(data string) *Error {
	return NewError(InvalidParamsCode, "Invalid params", data)
}

// NewInternalServerError creates a new error with code -32603.
func NewInternalServerError(data string) *Error {
	return NewError(InternalServerErrorCode, "Internal error", data)
}

// NewPreconditionFailedError creates a new error with the distinguished
// precondition code.
func NewPreconditionFailedError(data string) *Error {
	return NewError(ErrPreconditionFailedCode, "Precondition failed", data)
}

// NewOverflowError creates a new error with the counter overflow code.
func NewOverflowError(data string) *Error {
	return NewError(ErrOverflowCode, "Counter overflow", data)
}

// NewOutOfGasError creates a new error with the out of gas code.
func NewOutOfGasError(data string) *Error {
	return NewError(ErrOutOfGasCode, "Out of gas", data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.Data)
}

// Is denotes whether the error matches the target one.
func (e *Error) Is(target error) bool {
	var clTarget *Error
	if errors.As(target, &clTarget) {
		return e.Code == clTarget.Code
	}
	return false
}
