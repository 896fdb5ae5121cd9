package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"horse.fit/kerkhof/internal/redirect"
)

const metricsNamespace = "kerkhof"

// Metrics holds the collectors exposed on /metrics. Each Server owns its own
// registry so tests can build servers side by side.
type Metrics struct {
	registry *prometheus.Registry

	RedirectsTotal       *prometheus.CounterVec
	RedirectTableEntries prometheus.Gauge
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RedirectsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "redirects_total",
				Help:      "Redirects issued by the resolver, by rule.",
			},
			[]string{"rule"},
		),
		RedirectTableEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "redirect_table_entries",
				Help:      "Exact-match entries in the loaded redirect table.",
			},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests served, by method and status code.",
			},
			[]string{"method", "code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"method"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) observeRedirect(rule redirect.Rule) {
	if m == nil {
		return
	}
	m.RedirectsTotal.WithLabelValues(string(rule)).Inc()
}

func (m *Metrics) observeRequest(method string, status int, latency time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(latency.Seconds())
}
