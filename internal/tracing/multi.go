package tracing

import "context"

// Multi fans one event out to every wrapped Tracer, letting a
// deployment combine e.g. OTelTracer and the Redis trace bus without
// the engine itself knowing how many sinks are listening.
type Multi []Tracer

func (m Multi) Trace(ctx context.Context, kind EventKind, fields map[string]any) {
	for _, t := range m {
		if t != nil {
			t.Trace(ctx, kind, fields)
		}
	}
}
