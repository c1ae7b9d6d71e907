package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"meagle/internal/metrics"
)

// metricsResponseWriter captures the status code for labeling.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{w, http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath collapses dynamic route segments so the path label stays
// low-cardinality.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return path
	}
	switch parts[1] {
	case "media":
		// /media/{path} carries arbitrary blob names.
		return "/media/{path}"
	case "assets":
		if len(parts) >= 3 && parts[2] != "" {
			out := "/assets/{id}"
			if len(parts) >= 4 {
				out += "/" + parts[3]
			}
			return out
		}
	case "annotations":
		if len(parts) >= 3 && parts[2] != "" {
			return "/annotations/{id}"
		}
	case "folders":
		if len(parts) >= 3 && parts[2] != "" {
			return "/folders/{id}"
		}
	case "smart-folders":
		if len(parts) >= 3 && parts[2] != "" {
			out := "/smart-folders/{id}"
			if len(parts) >= 4 {
				out += "/" + parts[3]
			}
			return out
		}
	}
	return path
}
