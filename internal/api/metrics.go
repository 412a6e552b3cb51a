package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments exposed under /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	tokensIssued    *prometheus.CounterVec
	verifications   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cirrus",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cirrus",
			Name:      "tokens_issued_total",
			Help:      "Token requests by grant type and outcome.",
		}, []string{"grant_type", "outcome"}),
		verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cirrus",
			Name:      "token_verifications_total",
			Help:      "Bearer token verifications by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	m.requestDuration.
		WithLabelValues(method, route, strconv.Itoa(status)).
		Observe(duration.Seconds())
}

func (m *Metrics) CountTokenIssued(grantType string, granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.tokensIssued.WithLabelValues(grantType, outcome).Inc()
}

func (m *Metrics) CountVerification(ok bool) {
	outcome := "rejected"
	if ok {
		outcome = "verified"
	}
	m.verifications.WithLabelValues(outcome).Inc()
}
