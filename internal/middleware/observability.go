package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"messengerhub/internal/metrics"
	"messengerhub/internal/service"
	"messengerhub/internal/tracing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ObservabilityMiddleware adds a span, a request id, metrics and access logging to every request
func ObservabilityMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r)

			ctx, span := tracing.WithOtelTracing(r.Context(), "http "+r.Method+" "+route)
			defer span.End()

			requestID := r.Header.Get(tracing.RequestIDHeader)
			if requestID == "" {
				requestID = tracing.GenerateRequestID()
			}
			ctx = tracing.WithRequestID(ctx, requestID)
			ctx = tracing.WithStartTime(ctx, time.Now())
			if tracing.GetTraceID(ctx) == "" {
				ctx = tracing.WithTraceID(ctx, strings.ReplaceAll(uuid.NewString(), "-", ""))
			}
			r = r.WithContext(ctx)

			clientIP := GetClientIP(r)
			tracing.AddSpanAttributes(ctx,
				attribute.String("http.method", r.Method),
				attribute.String("http.route", route),
				attribute.String("user_agent.original", r.Header.Get("User-Agent")),
				attribute.String("client.address", clientIP),
			)

			w.Header().Set(tracing.RequestIDHeader, requestID)
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID: requestID,
				service.LogFieldTraceID:   tracing.GetTraceID(ctx),
				service.LogFieldMethod:    r.Method,
				service.LogFieldURL:       route,
				service.LogFieldRemoteIP:  clientIP,
				service.LogFieldUserAgent: r.Header.Get("User-Agent"),
			}).Debug("HTTP request started")

			next.ServeHTTP(wrapper, r)

			duration := tracing.Duration(ctx)
			status := strconv.Itoa(wrapper.statusCode)

			tracing.AddSpanAttributes(ctx,
				attribute.Int("http.response.status_code", wrapper.statusCode),
				attribute.Int64("http.response.size", wrapper.responseSize),
			)
			if wrapper.statusCode >= 500 {
				tracing.SetSpanStatus(ctx, codes.Error, fmt.Sprintf("HTTP %d", wrapper.statusCode))
			} else {
				tracing.SetSpanStatus(ctx, codes.Ok, "")
			}

			labels := map[string]string{"method": r.Method, "endpoint": route, "status_code": status}
			metrics.IncrementCounter(metrics.HTTPRequestsTotal, labels, "HTTP requests by route and status")
			metrics.RecordTimer(metrics.HTTPRequestDuration, duration, labels, "HTTP request duration")

			logLevel := logrus.InfoLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				service.LogFieldRequestID:  requestID,
				service.LogFieldTraceID:    tracing.GetTraceID(ctx),
				service.LogFieldMethod:     r.Method,
				service.LogFieldURL:        route,
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   duration.Milliseconds(),
				service.LogFieldRemoteIP:   clientIP,
				service.LogFieldSize:       wrapper.responseSize,
			}).Log(logLevel, "HTTP request completed")
		})
	}
}

// routeLabel prefers the matched route template so path parameters don't explode metric cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// responseWrapper captures response metrics
type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
	wroteHeader  bool
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	if !rw.wroteHeader {
		rw.statusCode = statusCode
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}
