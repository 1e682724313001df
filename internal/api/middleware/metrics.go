package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/clinicops/trainingdesk/internal/metrics"
)

// statusWriter wraps http.ResponseWriter to capture status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Metrics returns middleware that records Prometheus metrics.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		path := normalizePath(r.URL.Path)

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method, path, strconv.Itoa(wrapped.status),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method, path,
		).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses item ids to keep label cardinality bounded.
func normalizePath(path string) string {
	const uploads = "/api/uploads/"
	if strings.HasPrefix(path, uploads) {
		rest := strings.TrimPrefix(path, uploads)
		if rest != "" && rest != "metadata" && rest != "submit" {
			return uploads + ":id"
		}
	}
	return path
}
