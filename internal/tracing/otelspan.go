package tracing

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/flowmesh/internal/platform/ctxutil"
)

// OTelTracer turns each event into a zero-duration span named after
// its EventKind, with fields as span attributes. Grounded on
// dshills-langgraph-go's graph/emit/otel.go OTelEmitter, trimmed to
// the attribute types the engine's trace fields actually use.
type OTelTracer struct {
	tracer trace.Tracer
}

func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

func (t *OTelTracer) Trace(ctx context.Context, kind EventKind, fields map[string]any) {
	_, span := t.tracer.Start(ctx, string(kind))
	defer span.End()

	if td := ctxutil.GetTraceData(ctx); td != nil && td.TraceID != "" {
		span.SetAttributes(attribute.String("trace_id", td.TraceID))
	}

	for k, v := range fields {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		case time.Duration:
			span.SetAttributes(attribute.Int64(k, int64(val/time.Millisecond)))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	if kind == NodeFailure {
		span.SetStatus(codes.Error, "node failure")
	}
}
