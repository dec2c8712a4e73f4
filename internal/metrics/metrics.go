// Package metrics exposes Prometheus instrumentation for the control loop.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "medipilot"

// Recorder owns the loop's collectors and the registry they live in.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	cyclesTotal      prometheus.Counter
	cycleDuration    prometheus.Histogram
	stageFaultsTotal *prometheus.CounterVec
	dispatchTotal    *prometheus.CounterVec
	inferenceSeconds *prometheus.HistogramVec
	sessionsTotal    *prometheus.CounterVec
	sessionsActive   prometheus.Gauge
}

// New creates a Recorder on a fresh registry that also carries the Go and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Total number of control loop cycles entered",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one perception, cognition and execution cycle in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		stageFaultsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_faults_total",
			Help:      "Total number of recoverable faults by stage and kind",
		}, []string{"stage", "kind"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Total number of plans handed to the executor by action and result",
		}, []string{"action", "status", "code"}),
		inferenceSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inference_duration_seconds",
			Help:      "Duration of vision model calls in seconds",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
		}, []string{"phase"}),
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of sessions by final outcome",
		}, []string{"outcome"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently running",
		}),
	}
	r.registry.MustRegister(
		r.cyclesTotal,
		r.cycleDuration,
		r.stageFaultsTotal,
		r.dispatchTotal,
		r.inferenceSeconds,
		r.sessionsTotal,
		r.sessionsActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) CycleStarted() {
	if r == nil {
		return
	}
	r.cyclesTotal.Inc()
}

func (r *Recorder) CycleFinished(d time.Duration) {
	if r == nil {
		return
	}
	r.cycleDuration.Observe(d.Seconds())
}

// StageFault counts a recoverable fault, e.g. ("cognition", "rateLimit").
func (r *Recorder) StageFault(stage, kind string) {
	if r == nil {
		return
	}
	r.stageFaultsTotal.WithLabelValues(stage, kind).Inc()
}

// Dispatch counts one executor result. code is empty for clean results.
func (r *Recorder) Dispatch(action, status, code string) {
	if r == nil {
		return
	}
	r.dispatchTotal.WithLabelValues(action, status, code).Inc()
}

// Inference observes a model call for phase "operation" or "extraction".
func (r *Recorder) Inference(phase string, d time.Duration) {
	if r == nil {
		return
	}
	r.inferenceSeconds.WithLabelValues(phase).Observe(d.Seconds())
}

func (r *Recorder) SessionStarted() {
	if r == nil {
		return
	}
	r.sessionsActive.Inc()
}

// SessionEnded records the final outcome: finished, bound_reached or aborted.
func (r *Recorder) SessionEnded(outcome string) {
	if r == nil {
		return
	}
	r.sessionsActive.Dec()
	r.sessionsTotal.WithLabelValues(outcome).Inc()
}
