package command

import (
	"errors"
	"fmt"
)

// Code is a machine-readable failure code. Callers branch on Code, never on
// message text.
type Code string

// Codes produced on the client side. Backend codes pass through unchanged.
const (
	CodeInternalError   Code = "INTERNAL_ERROR"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeInvalidResponse Code = "INVALID_RESPONSE"

	// Common backend codes.
	CodeOrderNotFound    Code = "ORDER_NOT_FOUND"
	CodeValidationFailed Code = "VALIDATION_FAILED"
	CodeConflict         Code = "CONFLICT"
	CodeOrderNotActive   Code = "ORDER_NOT_ACTIVE"
	CodePermissionDenied Code = "PERMISSION_DENIED"
)

// ErrorInfo is the failure detail carried by an unsuccessful Response.
type ErrorInfo struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Response is the backend verdict on one envelope.
type Response struct {
	CommandID string     `json:"command_id"`
	Success   bool       `json:"success"`
	OrderID   *string    `json:"order_id,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
}

// Failure builds an unsuccessful response for commandID.
func Failure(commandID string, code Code, message string) Response {
	return Response{
		CommandID: commandID,
		Success:   false,
		Error:     &ErrorInfo{Code: code, Message: message},
	}
}

// CommandError is the error form of a failed Response, produced by EnsureSuccess.
type CommandError struct {
	Code      Code
	Message   string
	Context   string
	CommandID string
}

func (e *CommandError) Error() string {
	if e.Context == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Context, e.Code, e.Message)
}

// Is matches another *CommandError by code, so errors.Is(err, &CommandError{Code: c}) works.
func (e *CommandError) Is(target error) bool {
	t, ok := target.(*CommandError)
	return ok && t.Code == e.Code
}

// Retryable reports whether resending the same envelope may succeed.
func (e *CommandError) Retryable() bool {
	return e.Code == CodeNetworkError || e.Code == CodeInternalError
}

// EnsureSuccess turns a failed response into a *CommandError carrying the
// backend code. context names the user action for logs and messages.
func EnsureSuccess(resp Response, context string) error {
	if resp.Success {
		return nil
	}
	info := resp.Error
	if info == nil || info.Code == "" {
		info = &ErrorInfo{Code: CodeInternalError, Message: "command failed without error detail"}
	}
	return &CommandError{
		Code:      info.Code,
		Message:   info.Message,
		Context:   context,
		CommandID: resp.CommandID,
	}
}

// CodeOf extracts the failure code from err, or "" if err is not a CommandError.
func CodeOf(err error) Code {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
