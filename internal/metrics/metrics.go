package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process wide prometheus collectors
// Every instance owns its registry, so tests may create as many as they want
type Metrics struct {
	registry *prometheus.Registry

	RequestCount    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Authorized requests per endpoint, mirrors activity_metrics table
	EndpointHits *prometheus.CounterVec

	// Requests rejected by auth gates
	GateRejections *prometheus.CounterVec

	// Metering hits dropped because queue was full or write failed
	MeterDropped *prometheus.CounterVec

	LLMRequests *prometheus.CounterVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		EndpointHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "endpoint_hits_total",
				Help:      "Total number of authorized requests per endpoint",
			},
			[]string{"method", "endpoint"},
		),
		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "auth",
				Name:      "gate_rejections_total",
				Help:      "Total number of requests rejected by auth gates",
			},
			[]string{"tier", "reason"},
		),
		MeterDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "metering",
				Name:      "dropped_total",
				Help:      "Total number of usage hits that were not recorded",
			},
			[]string{"reason"},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "llm",
				Name:      "requests_total",
				Help:      "Total number of upstream LLM requests",
			},
			[]string{"outcome"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.EndpointHits,
		m.GateRejections,
		m.MeterDropped,
		m.LLMRequests,
	)

	return m
}

func (m *Metrics) ObserveRequest(method string, route string, status int, duration time.Duration) {
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) EndpointHit(method string, endpoint string) {
	m.EndpointHits.WithLabelValues(method, endpoint).Inc()
}

func (m *Metrics) GateRejected(tier string, reason string) {
	m.GateRejections.WithLabelValues(tier, reason).Inc()
}

func (m *Metrics) HitDropped(reason string) {
	m.MeterDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) LLMRequest(outcome string) {
	m.LLMRequests.WithLabelValues(outcome).Inc()
}

// Handler exposes metrics in prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
