package httpx

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Request outcomes, one per error class plus success.
const (
	outcomeOK           = "ok"
	outcomeBadRequest   = "bad_request"
	outcomeUnauthorized = "unauthorized"
	outcomeNotFound     = "not_found"
	outcomeConflict     = "conflict"
	outcomeRateLimited  = "rate_limited"
	outcomeInternal     = "internal"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

type httpMetrics struct {
	requests   *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rateLimits *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requests: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktrack",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "HTTP requests by route, status and outcome.",
		}, []string{"method", "route", "status", "outcome"})),
		latency: registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tasktrack",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP handler latency by route and outcome.",
			Buckets:   latencyBuckets,
		}, []string{"method", "route", "outcome"})),
		rateLimits: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tasktrack",
			Subsystem: "api",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by a rate limit, by route and key kind (ip, email, user).",
		}, []string{"route", "key"})),
	}
}

// registerOrReuse registers c, or returns the collector a previous Router
// already registered under the same description.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *httpMetrics) observe(method, route string, status int, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status), outcome).Inc()
	m.latency.WithLabelValues(method, route, outcome).Observe(took.Seconds())
}

func (m *httpMetrics) rateLimited(route, kind string) {
	if m == nil {
		return
	}
	m.rateLimits.WithLabelValues(route, kind).Inc()
}

type outcomeSetter interface {
	SetOutcome(string)
}

// setOutcome tags the response with its error class when w is audited.
func setOutcome(w http.ResponseWriter, outcome string) {
	if setter, ok := w.(outcomeSetter); ok {
		setter.SetOutcome(outcome)
	}
}

// outcomeForStatus classifies responses that never went through
// writeServiceError, such as decode failures and unknown routes.
func outcomeForStatus(status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return outcomeInternal
	case status == http.StatusTooManyRequests:
		return outcomeRateLimited
	case status == http.StatusConflict:
		return outcomeConflict
	case status == http.StatusNotFound:
		return outcomeNotFound
	case status == http.StatusUnauthorized:
		return outcomeUnauthorized
	case status >= http.StatusBadRequest:
		return outcomeBadRequest
	default:
		return outcomeOK
	}
}
