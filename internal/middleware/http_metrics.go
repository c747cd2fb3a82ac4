package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// staticRoutes are recorded under their own path.
var staticRoutes = map[string]bool{
	"/":               true,
	"/courses/ranked": true,
	"/settings":       true,
	"/health":         true,
	"/ready":          true,
	"/metrics":        true,
}

// normalizePath converts paths with dynamic segments to route patterns to prevent
// cardinality explosion in metrics. /courses/abc becomes /courses/{id}, and
// anything unrecognised collapses to "other".
func normalizePath(path string) string {
	if staticRoutes[path] {
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/courses/"); ok {
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1 && parts[0] != "":
			return "/courses/{id}"
		case len(parts) == 2 && parts[0] != "" && parts[1] == "promotion":
			return "/courses/{id}/promotion"
		}
	}

	return "other"
}

// metricsResponseWriter wraps http.ResponseWriter to capture status code and response size.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode  int
	size        int64
	wroteHeader bool
}

// WriteHeader captures the status code before writing it.
func (mrw *metricsResponseWriter) WriteHeader(code int) {
	if mrw.wroteHeader {
		return
	}
	mrw.statusCode = code
	mrw.wroteHeader = true
	mrw.ResponseWriter.WriteHeader(code)
}

// Write captures the response size and writes the data.
func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	if !mrw.wroteHeader {
		mrw.WriteHeader(http.StatusOK)
	}
	n, err := mrw.ResponseWriter.Write(b)
	mrw.size += int64(n)
	return n, err
}

// recordErrorCode forwards to the wrapped writer so error codes reach Logging
// regardless of middleware order.
func (mrw *metricsResponseWriter) recordErrorCode(code string) {
	if rec, ok := mrw.ResponseWriter.(errorCodeRecorder); ok {
		rec.recordErrorCode(code)
	}
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

// HTTPMetrics is a middleware that records HTTP request metrics.
// It captures duration, request/response sizes, and request counts.
// Health check endpoints (/health, /ready) are excluded.
func HTTPMetrics(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			mrw := newMetricsResponseWriter(w)

			requestSize := int64(0)
			if r.ContentLength > 0 {
				requestSize = r.ContentLength
			}

			next.ServeHTTP(mrw, r)

			metrics.ObserveHTTPRequest(
				r.Method,
				normalizePath(r.URL.Path),
				strconv.Itoa(mrw.statusCode),
				time.Since(start).Seconds(),
				requestSize,
				mrw.size,
			)
		})
	}
}
