// Package telemetry counts solver work with Prometheus metrics. A
// *Collector satisfies reactor.Recorder.
package telemetry

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/san-kum/reactsim/internal/dynamo"
)

const namespace = "reactsim"

type Collector struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	steps       *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	evaluations *prometheus.CounterVec
	jacobians   *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// New registers the collector's metrics on a private registry.
func New() *Collector {
	labels := []string{"regime", "solver"}
	c := &Collector{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Integrations by outcome.",
		}, append(labels, "outcome")),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_steps_total",
			Help:      "Attempted solver steps.",
		}, labels),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solver_rejected_steps_total",
			Help:      "Steps rejected by error control.",
		}, labels),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rhs_evaluations_total",
			Help:      "Mass balance evaluations.",
		}, labels),
		jacobians: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jacobian_evaluations_total",
			Help:      "Finite-difference Jacobians formed.",
		}, labels),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time per integration.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, labels),
	}
	c.registry.MustRegister(c.runs, c.steps, c.rejected, c.evaluations, c.jacobians, c.duration)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) ObserveRun(regime, solver string, stats dynamo.Stats, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.runs.WithLabelValues(regime, solver, outcome).Inc()
	c.steps.WithLabelValues(regime, solver).Add(float64(stats.Steps))
	c.rejected.WithLabelValues(regime, solver).Add(float64(stats.Rejected))
	c.evaluations.WithLabelValues(regime, solver).Add(float64(stats.Evaluations))
	c.jacobians.WithLabelValues(regime, solver).Add(float64(stats.Jacobians))
	c.duration.WithLabelValues(regime, solver).Observe(elapsed.Seconds())
}

// WriteText dumps every metric in the Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
