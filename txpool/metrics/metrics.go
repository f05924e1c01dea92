// Package metrics instruments the transaction pool and identify registry
// with prometheus gauges/histograms plus a go-flow-metrics throughput
// meter, following the teacher's convention of keeping metrics as a
// side-observer that never takes a lock the instrumented code holds.
package metrics

import (
	flowmetrics "github.com/libp2p/go-flow-metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles every gauge/histogram/meter this module exposes. The
// zero value is unusable; build one with New and register it with a
// prometheus.Registerer of the embedder's choosing.
type Metrics struct {
	PendingSize   prometheus.Gauge
	ProposedSize  prometheus.Gauge
	IdentifyPeers prometheus.Gauge

	DispatchLatency *prometheus.HistogramVec

	// SubmitMeter tracks submitted-transaction throughput the same way
	// go-libp2p tracks bandwidth: a decaying rate, not just a counter.
	SubmitMeter *flowmetrics.Meter
}

// New builds a Metrics bundle under the given namespace, e.g. "ckb_net".
func New(namespace string) *Metrics {
	return &Metrics{
		PendingSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "txpool",
			Name:      "pending_size",
			Help:      "Number of transactions in the pending set.",
		}),
		ProposedSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "txpool",
			Name:      "proposed_size",
			Help:      "Number of transactions in the proposed set.",
		}),
		IdentifyPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "identify",
			Name:      "active_handshakes",
			Help:      "Number of sessions with an in-flight or completed identify handshake.",
		}),
		DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "txpool",
			Name:      "dispatch_latency_seconds",
			Help:      "Dispatch handler latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		SubmitMeter: flowmetrics.NewMeter(),
	}
}

// Register adds every collector to reg. Embedders that already run a
// prometheus.Registry pass it directly; this module never owns one itself.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.PendingSize, m.ProposedSize, m.IdentifyPeers, m.DispatchLatency} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveDispatch records one handler invocation's latency in seconds.
func (m *Metrics) ObserveDispatch(operation string, seconds float64) {
	m.DispatchLatency.WithLabelValues(operation).Observe(seconds)
}

// RecordSubmit feeds the submitted-transaction throughput meter.
func (m *Metrics) RecordSubmit(count int) {
	m.SubmitMeter.Mark(uint64(count))
}

// SetPoolSizes publishes the pool's current pending/proposed counts to the
// size gauges; GetTxPoolInfo calls it with the counts it just read.
func (m *Metrics) SetPoolSizes(pending, proposed int) {
	m.PendingSize.Set(float64(pending))
	m.ProposedSize.Set(float64(proposed))
}
