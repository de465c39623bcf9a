package server

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the chi route pattern rather than the raw URL path.
	labelHandler = "handler"
)

// serverMetrics holds all Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// chatTurnsTotal counts chat turns, partitioned by the route the
	// question took ("global", "local", or "none" on failure) and outcome.
	chatTurnsTotal *prometheus.CounterVec

	// chatDurationSeconds records the wall-clock duration of each chat turn.
	chatDurationSeconds *prometheus.HistogramVec

	// chatActiveTurns is the number of chat turns currently running.
	chatActiveTurns prometheus.Gauge

	// generationsTotal counts quiz and flashcard generations, partitioned
	// by kind and whether the result was partial.
	generationsTotal *prometheus.CounterVec

	// httpRequestsTotal counts all HTTP requests handled by the router,
	// partitioned by method, route pattern, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// newServerMetrics registers all server metrics against reg and returns the
// populated serverMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default, which keeps tests hermetic.
func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		chatTurnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studykit",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total number of chat turns, partitioned by route and outcome.",
		}, []string{"route", "outcome"}),

		chatDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studykit",
			Subsystem: "chat",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of chat turns.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"outcome"}),

		chatActiveTurns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "studykit",
			Subsystem: "chat",
			Name:      "active_turns",
			Help:      "Number of chat turns currently running.",
		}),

		generationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studykit",
			Subsystem: "questions",
			Name:      "generations_total",
			Help:      "Total number of quiz and flashcard generations, partitioned by kind and partial result.",
		}, []string{"kind", "partial"}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studykit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "studykit",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", labelHandler}),
	}
}

// observeGeneration records one quiz or flashcard generation.
func (m *serverMetrics) observeGeneration(kind string, partial bool) {
	m.generationsTotal.WithLabelValues(kind, strconv.FormatBool(partial)).Inc()
}
