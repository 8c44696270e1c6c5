package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dockpulse"

// Metrics groups the collectors exported on /metrics. Each instance owns its
// registry, so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	CycleDuration        prometheus.Histogram
	CycleFailures        prometheus.Counter
	WorkloadReadFailures prometheus.Counter
	Workloads            prometheus.Gauge
	Observers            prometheus.Gauge
	ObserversDropped     prometheus.Counter
	ForwardFailures      prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		CycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sampling_cycle_duration_seconds",
			Help:      "Duration of one sampling cycle.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		CycleFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampling_cycle_failures_total",
			Help:      "Sampling cycles abandoned without updating the snapshot cache.",
		}),
		WorkloadReadFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workload_read_failures_total",
			Help:      "Per-workload counter reads that failed.",
		}),
		Workloads: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workloads",
			Help:      "Workloads in the latest snapshot.",
		}),
		Observers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Currently subscribed observers.",
		}),
		ObserversDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observers_dropped_total",
			Help:      "Observers dropped because their buffer was full.",
		}),
		ForwardFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forward_failures_total",
			Help:      "Snapshots that could not be forwarded upstream.",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
