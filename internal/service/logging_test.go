package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"messengerhub/internal/tracing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogFields_MasksUnlessVerbose(t *testing.T) {
	fields := logrus.Fields{
		LogFieldPSID:           "1234567890",
		LogFieldConversationID: "fb_1001_1234567890",
		LogFieldOutcome:        "stored",
	}

	masked := LogFields(context.Background(), fields)
	assert.NotEqual(t, "1234567890", masked[LogFieldPSID])
	assert.Contains(t, masked[LogFieldPSID], "7890")
	assert.Equal(t, "stored", masked[LogFieldOutcome])

	verbose := LogFields(WithVerbose(context.Background(), true), fields)
	assert.Equal(t, "1234567890", verbose[LogFieldPSID])
}

func TestLogWithContext_AddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := tracing.WithRequestID(context.Background(), "req_abc")
	LogWithContext(ctx, logger, logrus.Fields{LogFieldPageID: "1001"}).Info("hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req_abc", entry[LogFieldRequestID])
	assert.Equal(t, "1001", entry[LogFieldPageID])
	assert.Equal(t, "hello", entry["msg"])
}
