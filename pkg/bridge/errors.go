// Package bridge holds the shared error taxonomy for the voice-call bridge.
package bridge

import "fmt"

// Error is a categorized bridge error.
type Error struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Session string    `json:"session_id,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrConnection       ErrorType = "connection_error"
	ErrToolNotFound     ErrorType = "tool_not_found_error"
	ErrToolValidation   ErrorType = "tool_validation_error"
	ErrToolExecution    ErrorType = "tool_execution_error"
	ErrWebhookTransport ErrorType = "webhook_transport_error"
	ErrQuotaExceeded    ErrorType = "quota_exceeded_error"
)

// NewConnectionError creates a connection error.
func NewConnectionError(message string) *Error {
	return &Error{Type: ErrConnection, Message: message}
}

// NewToolNotFoundError creates a tool-not-found error for the named tool.
func NewToolNotFoundError(tool string) *Error {
	return &Error{Type: ErrToolNotFound, Message: fmt.Sprintf("tool %q not found", tool), Tool: tool}
}

// NewToolValidationError creates a validation error for the named tool.
func NewToolValidationError(tool, message string) *Error {
	return &Error{Type: ErrToolValidation, Message: message, Tool: tool}
}

// NewToolExecutionError wraps a local handler failure.
func NewToolExecutionError(tool string, underlying error) *Error {
	return &Error{Type: ErrToolExecution, Message: underlying.Error(), Tool: tool}
}

// NewWebhookTransportError wraps a webhook transport or schema failure.
func NewWebhookTransportError(tool, message string) *Error {
	return &Error{Type: ErrWebhookTransport, Message: message, Tool: tool}
}

// NewQuotaExceededError creates the fatal quota error for a session.
func NewQuotaExceededError(sessionID, code string) *Error {
	return &Error{Type: ErrQuotaExceeded, Message: "provider reported exhausted quota", Code: code, Session: sessionID}
}

// IsFatal reports whether the error must terminate the call instead of the
// current operation.
func (e *Error) IsFatal() bool {
	return e.Type == ErrQuotaExceeded
}
