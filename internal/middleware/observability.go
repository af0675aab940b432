package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chatrelay/internal/metrics"
	"chatrelay/internal/service"
	"chatrelay/internal/tracing"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	logFieldMethod   = "method"
	logFieldPath     = "path"
	logFieldRemoteIP = "remote_ip"
	logFieldTraceID  = "trace_id"
)

// Observability traces, times and logs every request to the status server.
// The endpoint label is the matched route template, so unknown paths do not
// create new series.
func Observability(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			endpoint := routeTemplate(r)

			ctx, span := tracing.StartSpan(r.Context(), "http.request",
				attribute.String("http.method", r.Method),
				attribute.String("http.route", endpoint),
				attribute.String("client.address", clientIP(r)),
			)
			defer span.End()
			r = r.WithContext(ctx)

			wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapper, r)

			duration := time.Since(start)
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

			labels := map[string]string{
				"method":      r.Method,
				"endpoint":    endpoint,
				"status_code": status,
			}
			metrics.IncrementCounter(metrics.StatusRequests, labels, "Status server requests")
			metrics.RecordTimer(metrics.StatusRequestTime, duration, map[string]string{"endpoint": endpoint}, "Status server request latency")

			logLevel := logrus.DebugLevel
			if wrapper.statusCode >= 400 && wrapper.statusCode < 500 {
				logLevel = logrus.WarnLevel
			} else if wrapper.statusCode >= 500 {
				logLevel = logrus.ErrorLevel
			}

			logger.WithFields(logrus.Fields{
				logFieldMethod:             r.Method,
				logFieldPath:               r.URL.Path,
				logFieldRemoteIP:           clientIP(r),
				logFieldTraceID:            tracing.GetOtelTraceID(ctx),
				service.LogFieldStatusCode: wrapper.statusCode,
				service.LogFieldDuration:   duration.Milliseconds(),
			}).Log(logLevel, "Status request completed")
		})
	}
}

func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// clientIP prefers the first X-Forwarded-For hop, then RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.Split(xff, ",")[0]); ip != "" {
			return ip
		}
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode   int
	responseSize int64
}

func (rw *responseWrapper) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWrapper) Write(data []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(data)
	rw.responseSize += int64(n)
	return n, err
}
