package metrics

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/tracing"
)

// Tracer adapts an Exporter to tracing.Tracer so metric updates ride
// along the same event stream as OTel spans and the trace bus — the
// engine emits one Trace call per occurrence regardless of how many
// sinks are listening (see tracing.Multi).
type Tracer struct {
	exporter *Exporter
}

func NewTracer(e *Exporter) *Tracer { return &Tracer{exporter: e} }

func (t *Tracer) Trace(ctx context.Context, kind tracing.EventKind, fields map[string]any) {
	flowName, _ := fields["flow_name"].(string)
	nodeName, _ := fields["node_name"].(string)

	switch kind {
	case tracing.NodeSuccessful:
		t.exporter.FinishedNodes.WithLabelValues(flowName, nodeName).Inc()
	case tracing.NodeFailure:
		t.exporter.FailedNodes.WithLabelValues(flowName, nodeName).Inc()
	case tracing.FallbackStart:
		t.exporter.Fallbacks.WithLabelValues(flowName).Inc()
	}
}
