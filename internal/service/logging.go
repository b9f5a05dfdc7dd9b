package service

import (
	"context"

	"messengerhub/internal/privacy"
	"messengerhub/internal/tracing"

	"github.com/sirupsen/logrus"
)

// Standard log field names shared by every component
const (
	LogFieldPageID         = "page_id"
	LogFieldPSID           = "psid"
	LogFieldConversationID = "conversation_id"
	LogFieldMessageID      = "message_id"
	LogFieldMessageType    = "message_type"
	LogFieldOutcome        = "outcome"

	LogFieldComponent = "component"
	LogFieldMethod    = "method"

	LogFieldRequestID = "request_id"
	LogFieldTraceID   = "trace_id"

	LogFieldDuration   = "duration_ms"
	LogFieldCount      = "count"
	LogFieldSize       = "size_bytes"
	LogFieldURL        = "url"
	LogFieldEndpoint   = "endpoint"
	LogFieldStatusCode = "status_code"
	LogFieldRemoteIP   = "remote_ip"
	LogFieldUserAgent  = "user_agent"
)

// ContextKey is a package-local type to prevent context key collisions
type ContextKey string

// VerboseContextKey marks a context whose logs may carry unmasked identifiers
const VerboseContextKey ContextKey = "verbose"

// WithVerbose returns a context carrying the verbose logging flag
func WithVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, VerboseContextKey, verbose)
}

// IsVerboseLogging checks if verbose logging is enabled from context
func IsVerboseLogging(ctx context.Context) bool {
	if verbose, ok := ctx.Value(VerboseContextKey).(bool); ok {
		return verbose
	}
	return false
}

// LogFields masks identifiers in fields unless the context is verbose
func LogFields(ctx context.Context, fields logrus.Fields) logrus.Fields {
	if IsVerboseLogging(ctx) {
		return fields
	}
	return logrus.Fields(privacy.MaskSensitiveFields(fields))
}

// LogWithContext creates a logger entry carrying the request id and masked fields
func LogWithContext(ctx context.Context, logger *logrus.Logger, fields logrus.Fields) *logrus.Entry {
	entry := logger.WithFields(LogFields(ctx, fields))
	if requestID := tracing.GetRequestID(ctx); requestID != "" {
		entry = entry.WithField(LogFieldRequestID, requestID)
	}
	return entry
}
