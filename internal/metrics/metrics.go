package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay"

// Metrics owns a private registry so tests can build as many as they like.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	exchangeRequests *prometheus.CounterVec
	exchangeLatency  *prometheus.HistogramVec
	botCommands      *prometheus.CounterVec
	httpErrors       *prometheus.CounterVec
	alerts           *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		exchangeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_requests_total",
			Help:      "Signed exchange requests by endpoint and outcome.",
		}, []string{"method", "path", "outcome"}),
		exchangeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exchange_request_duration_seconds",
			Help:      "Exchange round trip latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		botCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_commands_total",
			Help:      "Chat commands handled by outcome.",
		}, []string{"command", "outcome"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error envelopes written by the HTTP front end.",
		}, []string{"status"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_total",
			Help:      "Operator alerts by event and delivery outcome.",
		}, []string{"event", "outcome"}),
	}
	reg.MustRegister(
		m.exchangeRequests,
		m.exchangeLatency,
		m.botCommands,
		m.httpErrors,
		m.alerts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveExchange(method, path, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.exchangeRequests.WithLabelValues(method, path, outcome).Inc()
	m.exchangeLatency.WithLabelValues(method, path).Observe(took.Seconds())
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.botCommands.WithLabelValues(command, outcome).Inc()
}

func (m *Metrics) ObserveHTTPError(status int) {
	if m == nil {
		return
	}
	m.httpErrors.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveAlert(event, outcome string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
