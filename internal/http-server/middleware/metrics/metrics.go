package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recordbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recordbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// FileOperationsTotal counts file store operations; updated from the
// handlers on save/remove.
var FileOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "recordbook_file_operations_total",
		Help: "Total number of file store operations",
	},
	[]string{"operation", "result"},
)

func New() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			path := normalizePath(r.URL.Path)

			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(ww.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// normalizePath collapses id and filename segments so metric cardinality
// stays bounded.
func normalizePath(path string) string {
	switch {
	case path == "/api/records" || path == "/metrics" || path == "/health" || path == "/ws":
		return path
	case strings.HasPrefix(path, "/uploads/"):
		return "/uploads/{filename}"
	case strings.HasSuffix(path, "/files") && strings.HasPrefix(path, "/api/records/"):
		return "/api/records/{id}/files"
	case strings.HasPrefix(path, "/api/records/"):
		return "/api/records/{id}"
	}
	return path
}
