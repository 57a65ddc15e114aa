// Package metrics exports the engine's Prometheus counters/gauges,
// grounded on 88lin-divinesense/ai/metrics/prometheus.go's exporter
// shape (namespaced metric vecs registered against a private
// registry, a promhttp.Handler for scraping), trimmed to five series:
// the node counters ride metrics.Tracer, while the active-nodes gauge
// and the retry-seconds histogram are set by dispatcher.Tick.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Exporter struct {
	registry *prometheus.Registry

	ActiveNodes    *prometheus.GaugeVec
	FinishedNodes  *prometheus.CounterVec
	FailedNodes    *prometheus.CounterVec
	Fallbacks      *prometheus.CounterVec
	RetrySeconds   *prometheus.HistogramVec
}

func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()

	e := &Exporter{
		registry: registry,
		ActiveNodes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "flowmesh",
			Name:      "active_nodes",
			Help:      "Currently active (scheduled, not yet finished) nodes per flow.",
		}, []string{"flow_name"}),
		FinishedNodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowmesh",
			Name:      "finished_nodes_total",
			Help:      "Total nodes that finished successfully.",
		}, []string{"flow_name", "node_name"}),
		FailedNodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowmesh",
			Name:      "failed_nodes_total",
			Help:      "Total nodes that finished in failure.",
		}, []string{"flow_name", "node_name"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "flowmesh",
			Name:      "fallbacks_total",
			Help:      "Total fallback combinations started or dropped.",
		}, []string{"flow_name"}),
		RetrySeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "flowmesh",
			Name:      "retry_seconds",
			Help:      "Distribution of the wait-before-next-tick durations a flow instance reports.",
			Buckets:   []float64{1, 2, 5, 10, 30, 60, 120},
		}, []string{"flow_name"}),
	}

	registry.MustRegister(e.ActiveNodes, e.FinishedNodes, e.FailedNodes, e.Fallbacks, e.RetrySeconds)
	return e
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
