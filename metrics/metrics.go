// Package metrics collects per-run measurements in a private Prometheus
// registry, written at the end of a run in the node-exporter textfile
// format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "ingestflow"

// Recorder implements lifecycle.Recorder.
type Recorder struct {
	registry    *prometheus.Registry
	transitions *prometheus.CounterVec
	steps       *prometheus.HistogramVec
	failures    *prometheus.CounterVec
	tarballs    *prometheus.GaugeVec
	lastRun     prometheus.Gauge
	runDuration prometheus.Gauge
}

// New creates a recorder for the run identified by runID.
func New(runID string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "State transitions completed in the object store.",
		}, []string{"from", "to"}),
		steps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Time spent per handler and per expensive step.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
		}, []string{"step"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures reported through issues.",
		}, []string{"kind"}),
		tarballs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_tarballs",
			Help:      "Tarballs seen by the last run, by outcome.",
		}, []string{"outcome"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Name:        "last_run_timestamp_seconds",
			Help:        "Unix time the last run finished.",
			ConstLabels: prometheus.Labels{"run_id": runID},
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run.",
		}),
	}
	r.registry.MustRegister(r.transitions, r.steps, r.failures, r.tarballs, r.lastRun, r.runDuration)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Transition implements lifecycle.Recorder.
func (r *Recorder) Transition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

// Step implements lifecycle.Recorder.
func (r *Recorder) Step(name string, d time.Duration) {
	r.steps.WithLabelValues(name).Observe(d.Seconds())
}

// Failure implements lifecycle.Recorder.
func (r *Recorder) Failure(kind string) {
	r.failures.WithLabelValues(kind).Inc()
}

// RunFinished records the outcome counts of a run.
func (r *Recorder) RunFinished(processed, moved, failed int, d time.Duration, now time.Time) {
	r.tarballs.WithLabelValues("processed").Set(float64(processed))
	r.tarballs.WithLabelValues("moved").Set(float64(moved))
	r.tarballs.WithLabelValues("failed").Set(float64(failed))
	r.runDuration.Set(d.Seconds())
	r.lastRun.Set(float64(now.Unix()))
}

// TransitionCount returns how many from -> to transitions were recorded.
func (r *Recorder) TransitionCount(from, to string) float64 {
	var m dto.Metric
	if err := r.transitions.WithLabelValues(from, to).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
