package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "library_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	ledgerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "library_ledger_transitions_total",
		Help: "Borrow and return attempts by catalog and result",
	}, []string{"operation", "scope", "result"})

	activeBorrows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "library_active_borrows",
		Help: "Number of open history entries at the last stats read",
	})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "library_rate_limited_requests_total",
		Help: "Requests rejected by the per-client rate limiter",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLedger counts one borrow or return attempt. result is "ok" or the
// kind of error that rejected it.
func ObserveLedger(operation, scope, result string) {
	ledgerTransitions.WithLabelValues(operation, scope, result).Inc()
}

// SetActiveBorrows sets the active borrow gauge.
func SetActiveBorrows(count int) {
	if count < 0 {
		count = 0
	}
	activeBorrows.Set(float64(count))
}

// IncRateLimited counts a request refused with 429.
func IncRateLimited() {
	rateLimited.Inc()
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
