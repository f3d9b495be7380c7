package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"
)

// UnmatchedRoute labels requests that no registered route served, including
// 404s and requests refused before routing.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

// HTTPMetricsMiddleware instruments requests with Prometheus metrics. The
// path label is the route template recorded by WithRoute, so ids in the URL
// never create new series.
func HTTPMetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := UnmatchedRoute
		ctx := context.WithValue(r.Context(), routeKey{}, &route)

		ww := &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
		next.ServeHTTP(ww, r.WithContext(ctx))
		ObserveHTTPRequest(r.Method, route, strconv.Itoa(ww.Status), time.Since(start))
	})
}

// WithRoute records pattern as the path label of the request it serves.
func WithRoute(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if route, ok := r.Context().Value(routeKey{}).(*string); ok {
			*route = pattern
		}
		next(w, r)
	}
}

// StatusWriter remembers the status code written through it.
type StatusWriter struct {
	http.ResponseWriter
	Status int
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Status = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
