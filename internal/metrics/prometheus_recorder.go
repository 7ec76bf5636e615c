package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "clientboot"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	runDuration     prom.Histogram
	raceOutcomes    *prom.CounterVec
	activations     *prom.CounterVec
	fallbacks       prom.Counter
	pollCycles      prom.Counter
	storageFailures *prom.CounterVec
	served          *prom.CounterVec
}

// NewPrometheusRecorder constructs the metrics and registers them on reg
// (a fresh registry when reg is nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of coordinator runs from start to terminal state",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 15, 30, 60},
		}),
		raceOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "race_outcomes_total",
			Help:      "Coordinator runs by race outcome",
		}, []string{"outcome"}),
		activations: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "activations_total",
			Help:      "Activation endpoint calls by result",
		}, []string{"result"}),
		fallbacks: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_activations_total",
			Help:      "Activation calls made on the storage-unavailable path",
		}),
		pollCycles: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "poll_cycles_total",
			Help:      "Poll iterations spent waiting for another instance",
		}),
		storageFailures: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "storage_failures_total",
			Help:      "Key-value storage failures by operation",
		}, []string{"op"}),
		served: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "served_activations_total",
			Help:      "Activation requests answered by the server",
		}, []string{"result"}),
	}
	reg.MustRegister(pr.runDuration, pr.raceOutcomes, pr.activations, pr.fallbacks, pr.pollCycles, pr.storageFailures, pr.served)
	return pr
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRaceOutcome(outcome string) {
	if p == nil {
		return
	}
	p.raceOutcomes.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncActivation(result ActivationResult) {
	if p == nil {
		return
	}
	p.activations.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) IncFallbackActivation() {
	if p == nil {
		return
	}
	p.fallbacks.Inc()
}

func (p *PrometheusRecorder) IncPollCycle() {
	if p == nil {
		return
	}
	p.pollCycles.Inc()
}

func (p *PrometheusRecorder) IncStorageFailure(op string) {
	if p == nil {
		return
	}
	p.storageFailures.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) IncServedActivation(result ServedResult) {
	if p == nil {
		return
	}
	p.served.WithLabelValues(string(result)).Inc()
}
