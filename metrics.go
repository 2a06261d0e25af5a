package unwind

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus metrics for saga runs. All methods are safe on
// a nil receiver, so an orchestrator without metrics configured pays only a
// nil check.
type Metrics struct {
	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	stepDuration       *prometheus.HistogramVec
	compensationsTotal *prometheus.CounterVec
}

// NewMetrics creates the saga metric collectors and registers them with the
// given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saga_runs_total",
				Help: "Total number of saga runs by terminal status.",
			},
			[]string{"saga", "status", "rollback"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saga_run_duration_seconds",
				Help:    "Duration of complete saga runs in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"saga"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saga_step_duration_seconds",
				Help:    "Duration of forward step actions in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"saga", "step"},
		),
		compensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saga_compensations_total",
				Help: "Total number of compensation attempts by outcome.",
			},
			[]string{"saga", "outcome"},
		),
	}

	reg.MustRegister(m.runsTotal, m.runDuration, m.stepDuration, m.compensationsTotal)
	return m
}

func (m *Metrics) observeRun(saga SagaName, status Status, rollback RollbackStatus, d time.Duration) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(string(saga), status.String(), rollback.String()).Inc()
	m.runDuration.WithLabelValues(string(saga)).Observe(d.Seconds())
}

func (m *Metrics) observeStep(saga SagaName, step StepName, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(string(saga), string(step)).Observe(d.Seconds())
}

func (m *Metrics) observeCompensation(saga SagaName, ok bool) {
	if m == nil {
		return
	}
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	m.compensationsTotal.WithLabelValues(string(saga), outcome).Inc()
}
