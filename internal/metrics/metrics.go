package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Probe outcomes.
const (
	OutcomeLive    = "live"
	OutcomeNotLive = "not_live"
	OutcomeError   = "error"
)

type Recorder interface {
	ObserveProbe(outcome string)
	IncTransition(status string)
	ObserveSweep(job string, d time.Duration, failed int)
	IncCacheLookup(hit bool)
}

type Metrics struct {
	probes        *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	sweepDuration *prometheus.HistogramVec
	sweepFailures *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
}

// New registers the collectors on reg (prometheus.DefaultRegisterer in the binaries).
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		probes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appwatch_probes_total",
			Help: "Catalog lookups by outcome",
		}, []string{"outcome"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appwatch_transitions_total",
			Help: "Lifecycle transitions by target status",
		}, []string{"status"}),
		sweepDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "appwatch_sweep_duration_seconds",
			Help:    "Duration of scheduled sweeps",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"job"}),
		sweepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appwatch_sweep_record_failures_total",
			Help: "Records that failed inside a sweep",
		}, []string{"job"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "appwatch_check_cache_lookups_total",
			Help: "Check API cache lookups",
		}, []string{"result"}),
	}
}

func (m *Metrics) ObserveProbe(outcome string) {
	m.probes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveSweep(job string, d time.Duration, failed int) {
	m.sweepDuration.WithLabelValues(job).Observe(d.Seconds())
	if failed > 0 {
		m.sweepFailures.WithLabelValues(job).Add(float64(failed))
	}
}

func (m *Metrics) IncCacheLookup(hit bool) {
	res := "miss"
	if hit {
		res = "hit"
	}
	m.cacheLookups.WithLabelValues(res).Inc()
}

// Noop is used by tests and when metrics are not wired.
type Noop struct{}

func (Noop) ObserveProbe(string)                     {}
func (Noop) IncTransition(string)                    {}
func (Noop) ObserveSweep(string, time.Duration, int) {}
func (Noop) IncCacheLookup(bool)                     {}
