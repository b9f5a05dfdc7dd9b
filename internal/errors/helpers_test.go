package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("recipient_id", "recipient_id is required")

	assert.Equal(t, ErrCodeInvalidInput, err.Code)
	assert.Equal(t, "recipient_id is required", err.UserMessage)
	assert.Equal(t, "recipient_id", err.Context["field"])
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("page_id", "Page 123 not configured")

	assert.Equal(t, ErrCodeInvalidConfig, err.Code)
	assert.Equal(t, "Page 123 not configured", err.UserMessage)
	assert.Equal(t, "page_id", err.Context["config_key"])
}

func TestNewDatabaseError(t *testing.T) {
	originalErr := errors.New("connection failed")
	err := NewDatabaseError("insert", originalErr)

	assert.Equal(t, ErrCodeDatabaseQuery, err.Code)
	assert.Equal(t, "database insert failed", err.Message)
	assert.Equal(t, originalErr, err.Cause)
	assert.Equal(t, "insert", err.Context["operation"])
	assert.Equal(t, "connection failed", GetUserMessage(err))

	resp := ToHTTPResponse(err)
	assert.Equal(t, "connection failed", resp.Error)
}

func TestNewPlatformError(t *testing.T) {
	err := NewPlatformError("me/messages", 400, 10, "Message sent outside allowed window")

	assert.Equal(t, ErrCodePlatformAPI, err.Code)
	assert.Equal(t, 400, err.StatusCode)
	assert.Equal(t, 10, err.PlatformCode)
	assert.Equal(t, "Facebook error: Message sent outside allowed window", err.UserMessage)
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"invalid input", NewValidationError("f", "bad"), http.StatusBadRequest},
		{"invalid config", NewConfigError("page_id", "missing"), http.StatusBadRequest},
		{"not found", NewNotFoundError("Customer", "psid"), http.StatusNotFound},
		{"platform status passthrough", NewPlatformError("me/messages", 403, 200, "denied"), http.StatusForbidden},
		{"platform without status", New(ErrCodePlatformAPI, "bad"), http.StatusBadGateway},
		{"timeout", NewTimeoutError("send", errors.New("context deadline exceeded")), http.StatusInternalServerError},
		{"database", NewDatabaseError("select", errors.New("x")), http.StatusInternalServerError},
		{"wrapped config", fmt.Errorf("outer: %w", NewConfigError("k", "m")), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusCode(tt.err))
		})
	}
}

func TestToHTTPResponse(t *testing.T) {
	t.Run("platform error carries code", func(t *testing.T) {
		resp := ToHTTPResponse(NewPlatformError("me/messages", 400, 10, "outside window"))
		assert.False(t, resp.Success)
		assert.Equal(t, "Facebook error: outside window", resp.Error)
		require.NotNil(t, resp.Code)
		assert.Equal(t, 10, *resp.Code)
	})

	t.Run("plain error uses its text", func(t *testing.T) {
		resp := ToHTTPResponse(errors.New("network down"))
		assert.Equal(t, "network down", resp.Error)
		assert.Nil(t, resp.Code)
	})
}
