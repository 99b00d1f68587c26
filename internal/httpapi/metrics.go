package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/surveyrecon/internal/outcome"
)

// Metrics holds the server's collectors. Each Metrics owns its registry, so
// several servers (or tests) can coexist in one process.
type Metrics struct {
	registry  *prometheus.Registry
	stages    *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	responses prometheus.Counter
	requests  *prometheus.CounterVec
}

// NewMetrics registers the surveyrecon collectors and the Go runtime
// collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "surveyrecon_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"stage"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveyrecon_runs_total",
			Help: "Pipeline runs by outcome status.",
		}, []string{"status"}),
		responses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveyrecon_responses_processed_total",
			Help: "Respondent rows turned into processed responses.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveyrecon_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		m.stages, m.runs, m.responses, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveStage records a stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun counts a finished run and its responses.
func (m *Metrics) ObserveRun(status outcome.Status, responses int) {
	m.runs.WithLabelValues(string(status)).Inc()
	m.responses.Add(float64(responses))
}

func (m *Metrics) observeRequest(route string, code int) {
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
