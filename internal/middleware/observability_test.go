package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"messengerhub/internal/metrics"
	"messengerhub/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*logrus.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger, &buf
}

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestObservabilityMiddleware(t *testing.T) {
	logger, buf := newTestLogger()

	router := mux.NewRouter()
	router.Use(ObservabilityMiddleware(logger))
	router.HandleFunc("/api/conversation/{conversation_id}", func(w http.ResponseWriter, r *http.Request) {
		info := tracing.GetRequestInfo(r.Context())
		assert.NotEmpty(t, info.RequestID)
		assert.NotEmpty(t, info.TraceID)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	req := httptest.NewRequest(http.MethodGet, "/api/conversation/fb_1_2", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(tracing.RequestIDHeader))

	entry := lastLogLine(t, buf)
	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "/api/conversation/{conversation_id}", entry["url"])
	assert.Equal(t, "192.168.1.100", entry["remote_ip"])
	assert.Equal(t, float64(2), entry["size_bytes"])

	key := "http_requests_total_endpoint:/api/conversation/{conversation_id}_method:GET_status_code:200"
	_, ok := metrics.GetAllMetrics().Counters[key]
	assert.True(t, ok, "expected counter keyed by route template")
}

func TestObservabilityMiddleware_PropagatesRequestID(t *testing.T) {
	logger, _ := newTestLogger()
	handler := ObservabilityMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "req_upstream", tracing.GetRequestID(r.Context()))
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(tracing.RequestIDHeader, "req_upstream")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req_upstream", w.Header().Get(tracing.RequestIDHeader))
}

func TestObservabilityMiddleware_LogLevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNotFound, "warning"},
		{http.StatusInternalServerError, "error"},
	}

	for _, tt := range tests {
		logger, buf := newTestLogger()
		handler := ObservabilityMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))

		entry := lastLogLine(t, buf)
		assert.Equal(t, tt.level, entry["level"])
		assert.Equal(t, float64(tt.status), entry["status_code"])
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.5:4000", "192.0.2.5"},
		{"ipv6 remote addr", nil, "[2001:db8::1]:443", "2001:db8::1"},
		{"no port", nil, "192.0.2.9", "192.0.2.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, GetClientIP(req))
		})
	}
}
