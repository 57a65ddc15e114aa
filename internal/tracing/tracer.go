package tracing

import "context"

// Event categories the engine emits once per occurrence, named after
// the Trace.* constants celeriac/systemState.py logs against
// (FLOW_START, TASK_SCHEDULE, SUBFLOW_SCHEDULE, NODE_SUCCESSFUL,
// NODE_FAILURE, FALLBACK_START).
type EventKind string

const (
	FlowStart       EventKind = "flow_start"
	TaskSchedule    EventKind = "task_schedule"
	SubflowSchedule EventKind = "subflow_schedule"
	NodeSuccessful  EventKind = "node_successful"
	NodeFailure     EventKind = "node_failure"
	FallbackStart   EventKind = "fallback_start"
)

// Tracer receives one structured event per engine-observed occurrence.
// Implementations fan it out to an OpenTelemetry span and/or a Redis
// pub/sub channel (see internal/tracing/otelspan.go and
// internal/tracing/bus); the engine itself never depends on either.
type Tracer interface {
	Trace(ctx context.Context, kind EventKind, fields map[string]any)
}

// Noop discards every event. Used by tests and by callers that don't
// care about trace output.
type Noop struct{}

func (Noop) Trace(ctx context.Context, kind EventKind, fields map[string]any) {}
