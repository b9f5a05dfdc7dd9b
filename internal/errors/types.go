package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a categorized error type
type ErrorCode string

const (
	// Configuration errors: missing or invalid page, token or setting
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Validation errors
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Upstream platform errors carry the platform's own status code
	ErrCodePlatformAPI ErrorCode = "PLATFORM_API"

	// Storage errors
	ErrCodeDatabaseQuery ErrorCode = "DATABASE_QUERY"

	// Internal errors
	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeTimeout       ErrorCode = "TIMEOUT"
)

// AppError represents a structured application error
type AppError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Cause       error                  `json:"-"`
	Context     map[string]interface{} `json:"context,omitempty"`
	UserMessage string                 `json:"user_message,omitempty"`
	// StatusCode overrides the code-derived HTTP status (platform errors)
	StatusCode int `json:"status_code,omitempty"`
	// PlatformCode is the numeric error code reported by the Graph API
	PlatformCode int `json:"platform_code,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithUserMessage sets the message returned to API callers
func (e *AppError) WithUserMessage(msg string) *AppError {
	e.UserMessage = msg
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// As extracts an *AppError from an error chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// GetUserMessage extracts the caller-facing message from an error.
// Errors without one fall back to their own text.
func GetUserMessage(err error) string {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		if appErr.UserMessage != "" {
			return appErr.UserMessage
		}
		return appErr.Message
	}
	return err.Error()
}
