package redisadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/flowmesh/flowmesh/internal/platform/envutil"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

// Adapter is a storage.Adapter backed by Redis, grounded on the
// teacher's internal/clients/redis/sse_bus.go connection/env
// conventions (REDIS_ADDR, ping-on-connect, a client.Close teardown).
// Results are written as plain string values keyed by
// flow_name/task_name/task_id, with an optional TTL so a flow's
// intermediate results don't accumulate forever in a cache-oriented
// deployment.
type Adapter struct {
	log *logger.Logger

	addr string
	ttl  time.Duration
	rdb  *goredis.Client

	connected atomic.Bool
}

func New(log *logger.Logger, addr string, ttl time.Duration) *Adapter {
	return &Adapter{log: log.With("component", "RedisStorageAdapter"), addr: addr, ttl: ttl}
}

func NewFromEnv(log *logger.Logger, envPrefix string) *Adapter {
	addr := envutil.String(envPrefix+"REDIS_ADDR", "localhost:6379")
	ttlSeconds := envutil.Int(envPrefix+"REDIS_STORAGE_TTL_SECONDS", 0)
	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return New(log, addr, ttl)
}

func (a *Adapter) Connected() bool { return a.connected.Load() }

func (a *Adapter) Connect(ctx context.Context) error {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        a.addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redisadapter: ping: %w", err)
	}

	a.rdb = rdb
	a.connected.Store(true)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.rdb == nil {
		return nil
	}
	a.connected.Store(false)
	return a.rdb.Close()
}

func (a *Adapter) key(flowName, taskName, taskID string) string {
	return fmt.Sprintf("flowmesh:storage:%s:%s:%s", flowName, taskName, taskID)
}

func (a *Adapter) Retrieve(ctx context.Context, flowName, taskName, taskID string) (any, error) {
	raw, err := a.rdb.Get(ctx, a.key(flowName, taskName, taskID)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redisadapter: retrieve %s/%s/%s: %w", flowName, taskName, taskID, err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("redisadapter: decode result: %w", err)
	}
	return out, nil
}

func (a *Adapter) Store(ctx context.Context, flowName, taskName, taskID string, nodeArgs, result any) (string, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("redisadapter: encode result: %w", err)
	}
	key := a.key(flowName, taskName, taskID)
	if err := a.rdb.Set(ctx, key, raw, a.ttl).Err(); err != nil {
		return "", fmt.Errorf("redisadapter: store %s/%s/%s: %w", flowName, taskName, taskID, err)
	}
	return taskID, nil
}
