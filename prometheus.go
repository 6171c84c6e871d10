package gcsblock

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusObserver implements Observer by exporting each operation as
// Prometheus counters and a latency histogram, for deployments that want
// a scrape endpoint instead of (or alongside) the in-process Metrics
// snapshot.
type PrometheusObserver struct {
	ops     *prometheus.CounterVec
	bytes   *prometheus.CounterVec
	errors  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusObserver creates a PrometheusObserver and registers its
// collectors with reg. Pass prometheus.DefaultRegisterer to use the
// global registry.
func NewPrometheusObserver(reg prometheus.Registerer) (*PrometheusObserver, error) {
	o := &PrometheusObserver{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcsblock",
			Name:      "operations_total",
			Help:      "Total number of block-device operations by kind.",
		}, []string{"op"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcsblock",
			Name:      "bytes_total",
			Help:      "Total bytes transferred by operation kind.",
		}, []string{"op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcsblock",
			Name:      "errors_total",
			Help:      "Total failed operations by kind.",
		}, []string{"op"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "gcsblock",
			Name:      "operation_latency_seconds",
			Help:      "Operation latency in seconds by kind.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"op"}),
	}

	for _, c := range []prometheus.Collector{o.ops, o.bytes, o.errors, o.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *PrometheusObserver) observe(op string, bytesN, latencyNs uint64, success bool) {
	o.ops.WithLabelValues(op).Inc()
	o.bytes.WithLabelValues(op).Add(float64(bytesN))
	o.latency.WithLabelValues(op).Observe(float64(latencyNs) / 1e9)
	if !success {
		o.errors.WithLabelValues(op).Inc()
	}
}

func (o *PrometheusObserver) ObserveRead(bytesN, latencyNs uint64, success bool) {
	o.observe("read", bytesN, latencyNs, success)
}

func (o *PrometheusObserver) ObserveWrite(bytesN, latencyNs uint64, success bool) {
	o.observe("write", bytesN, latencyNs, success)
}

func (o *PrometheusObserver) ObserveZero(bytesN, latencyNs uint64, success bool) {
	o.observe("zero", bytesN, latencyNs, success)
}

func (o *PrometheusObserver) ObserveTrim(bytesN, latencyNs uint64, success bool) {
	o.observe("trim", bytesN, latencyNs, success)
}

func (o *PrometheusObserver) ObserveFlush(latencyNs uint64, success bool) {
	o.observe("flush", 0, latencyNs, success)
}

var _ Observer = (*PrometheusObserver)(nil)
