package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"tagpipe/internal"
	"tagpipe/logger"
)

// withRequestID adds a request ID to the context (wraps internal function)
func withRequestID(ctx context.Context, requestID string) context.Context {
	return internal.WithRequestID(ctx, requestID)
}

// GetRequestID retrieves the request ID from context (wraps internal function)
func GetRequestID(ctx context.Context) string {
	return internal.GetRequestID(ctx)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument assigns a request id, records metrics and logs completion for one route
func (h *Handler) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(internal.RequestIDHeader)
		if requestID == "" {
			requestID = internal.NewRequestID()
		}
		w.Header().Set(internal.RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r.WithContext(withRequestID(r.Context(), requestID)))
		elapsed := time.Since(start)

		h.metrics.Requests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		h.metrics.Latency.WithLabelValues(route).Observe(elapsed.Seconds())

		h.log.Info(logger.ComponentServer, logger.CategoryRequest, requestID, "Request handled", map[string]interface{}{
			"route":       route,
			"method":      r.Method,
			"status":      rec.status,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
}
