package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Attempts        *prometheus.CounterVec
	PartialSolves   prometheus.Counter
	Completions     prometheus.Counter
	Reconciliations *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subquestion_attempts_total",
				Help: "Sub-question submissions by outcome",
			},
			[]string{"outcome"},
		),
		PartialSolves: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subquestion_partial_solves_total",
			Help: "Newly recorded partial solves",
		}),
		Completions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subquestion_completions_total",
			Help: "Solve records committed after all questions were answered",
		}),
		Reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subquestion_reconciled_questions_total",
				Help: "Question rows touched by create and update, by operation",
			},
			[]string{"op"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "route", "status"},
		),
	}
	m.registry.MustRegister(m.Attempts, m.PartialSolves, m.Completions, m.Reconciliations, m.RequestDuration)
	return m
}

// Attempt counts one evaluated submission.
func (m *Metrics) Attempt(outcome string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(outcome).Inc()
}

// PartialSolveRecorded counts one new ledger entry.
func (m *Metrics) PartialSolveRecorded() {
	if m == nil {
		return
	}
	m.PartialSolves.Inc()
}

// Completed counts one committed solve.
func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.Completions.Inc()
}

// Reconciled counts question rows created, updated or deleted.
func (m *Metrics) Reconciled(op string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Reconciliations.WithLabelValues(op).Add(float64(n))
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware observes request durations labelled by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(ww.Status())).
			Observe(time.Since(start).Seconds())
	})
}
