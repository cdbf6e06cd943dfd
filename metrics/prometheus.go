package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers payment counters and stage latency
// histograms under the x402client namespace on the default registry.
func NewPrometheusRecorder() Recorder {
	return NewPrometheusRecorderWithRegistry(prometheus.DefaultRegisterer)
}

// NewPrometheusRecorderWithRegistry registers on a caller-owned registry.
func NewPrometheusRecorderWithRegistry(reg prometheus.Registerer) Recorder {
	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "x402client",
			Name:      "payment_events_total",
			Help:      "payment pipeline event counters",
		},
		[]string{"type", "wallet"},
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "x402client",
			Name:      "stage_latency_seconds",
			Help:      "payment stage latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage", "wallet"},
	)

	reg.MustRegister(counters, histogram)

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(prometheus.Labels{
		"type":   name,
		"wallet": labels["wallet"],
	}).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(prometheus.Labels{
		"stage":  name,
		"wallet": labels["wallet"],
	}).Observe(d.Seconds())
}
