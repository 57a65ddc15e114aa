// Package bus fans trace events out over Redis pub/sub, the same
// channel shape the teacher used for SSE forwarding
// (internal/clients/redis/sse_bus.go), so an external dashboard can
// subscribe to flow-engine events without polling the database.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowmesh/flowmesh/internal/platform/logger"
	"github.com/flowmesh/flowmesh/internal/tracing"
)

// Message is the wire shape published to the channel: one trace event
// plus the engine-observed fields it carried.
type Message struct {
	Kind   tracing.EventKind `json:"kind"`
	Fields map[string]any    `json:"fields"`
}

// Tracer publishes every event to a Redis channel. It never blocks a
// tick on a subscriber being present — a publish error is logged, not
// returned, since trace delivery is best-effort observability, not
// part of the engine's correctness contract.
type Tracer struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewTracer(log *logger.Logger, addr, channel string) (*Tracer, error) {
	if channel == "" {
		channel = "flowmesh:trace"
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("tracing/bus: ping: %w", err)
	}

	return &Tracer{log: log.With("component", "TraceBus"), rdb: rdb, channel: channel}, nil
}

func (t *Tracer) Trace(ctx context.Context, kind tracing.EventKind, fields map[string]any) {
	raw, err := json.Marshal(Message{Kind: kind, Fields: fields})
	if err != nil {
		t.log.Warn("encode trace message", "kind", kind, "error", err)
		return
	}
	if err := t.rdb.Publish(ctx, t.channel, raw).Err(); err != nil {
		t.log.Warn("publish trace message", "kind", kind, "error", err)
	}
}

// Subscribe forwards every message received on the channel to onMsg
// until ctx is canceled. Mirrors sseBus.StartForwarder's
// subscribe-then-range-over-channel shape.
func (t *Tracer) Subscribe(ctx context.Context, onMsg func(Message)) error {
	sub := t.rdb.Subscribe(ctx, t.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("tracing/bus: subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					_ = sub.Close()
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					t.log.Warn("bad trace bus payload", "error", err)
					continue
				}
				onMsg(msg)
			}
		}
	}()

	return nil
}

func (t *Tracer) Close() error {
	if t.rdb == nil {
		return nil
	}
	return t.rdb.Close()
}
