package errors

import (
	"fmt"
	"net/http"
)

// NewValidationError creates an input validation error
func NewValidationError(field, message string) *AppError {
	return New(ErrCodeInvalidInput, message).
		WithContext("field", field).
		WithUserMessage(message)
}

// NewConfigError creates a configuration error surfaced to callers as 400
func NewConfigError(key, message string) *AppError {
	return New(ErrCodeInvalidConfig, message).
		WithContext("config_key", key).
		WithUserMessage(message)
}

// NewDatabaseError creates a database error with operation context; the cause text is shown to callers
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseQuery, fmt.Sprintf("database %s failed", operation)).
		WithContext("operation", operation).
		WithUserMessage(err.Error())
}

// NewPlatformError creates an upstream Graph API error that keeps the platform's status and code
func NewPlatformError(endpoint string, statusCode, platformCode int, platformMessage string) *AppError {
	appErr := New(ErrCodePlatformAPI, fmt.Sprintf("graph api %s returned %d", endpoint, statusCode)).
		WithContext("endpoint", endpoint).
		WithContext("status_code", statusCode).
		WithUserMessage("Facebook error: " + platformMessage)
	appErr.StatusCode = statusCode
	appErr.PlatformCode = platformCode
	return appErr
}

// NewTimeoutError wraps a deadline error of an upstream call; the cause text is shown to callers
func NewTimeoutError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTimeout, fmt.Sprintf("%s timed out", operation)).
		WithContext("operation", operation).
		WithUserMessage(err.Error())
}

// NewNotFoundError creates a not found error with resource context
func NewNotFoundError(resource, identifier string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithContext("resource", resource).
		WithContext("identifier", identifier).
		WithUserMessage(fmt.Sprintf("%s not found", resource))
}

// HTTPStatusCode maps error codes to HTTP status codes
func HTTPStatusCode(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}

	switch appErr.Code {
	case ErrCodeInvalidInput, ErrCodeInvalidConfig:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodePlatformAPI:
		if appErr.StatusCode >= 400 {
			return appErr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorResponse is the JSON body returned for failed API calls
type HTTPErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    *int   `json:"code,omitempty"`
}

// ToHTTPResponse converts an error to the API error body
func ToHTTPResponse(err error) HTTPErrorResponse {
	response := HTTPErrorResponse{Error: GetUserMessage(err)}
	if appErr, ok := As(err); ok && appErr.Code == ErrCodePlatformAPI && appErr.PlatformCode != 0 {
		code := appErr.PlatformCode
		response.Code = &code
	}
	return response
}
