package sqlqueue

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/dispatcher"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
	"github.com/flowmesh/flowmesh/internal/platform/envutil"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

func parseID(s string) (uuid.UUID, error) { return uuid.Parse(s) }

/*
Worker is the SQL-backed flow-tick poller: N goroutines each claim the
oldest runnable FlowRun row and call Dispatcher.Tick on it. Unlike
Temporal's FlowWorkflow, nothing here keeps a flow instance alive
between ticks — the row itself, with its persisted Snapshot, is the
only state that survives a restart.

Grounded on the teacher's internal/jobs/worker/worker.go runLoop:
claim via SKIP LOCKED, heartbeat while running, recover from handler
panics rather than crash the pool.
*/
type Worker struct {
	Log        *logger.Logger
	Dispatcher *dispatcher.Dispatcher
}

func NewWorker(log *logger.Logger, d *dispatcher.Dispatcher) *Worker {
	return &Worker{Log: log.With("component", "SQLQueueWorker"), Dispatcher: d}
}

func (w *Worker) Start(ctx context.Context) {
	concurrency := envutil.Int("WORKER_CONCURRENCY", 4)
	if concurrency < 1 {
		concurrency = 1
	}
	w.Log.Info("Starting sqlqueue worker pool", "concurrency", concurrency)

	for i := 0; i < concurrency; i++ {
		workerID := i + 1
		go w.runLoop(ctx, workerID)
	}
}

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	const maxAttempts = 5
	retryDelay := 30 * time.Second
	staleRunning := 30 * time.Minute

	for {
		select {
		case <-ctx.Done():
			w.Log.Info("sqlqueue worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
			run, err := w.Dispatcher.Repo.ClaimNextRunnable(dbctx.Context{Ctx: ctx}, maxAttempts, retryDelay, staleRunning)
			if err != nil {
				w.Log.Warn("ClaimNextRunnable failed", "worker_id", workerID, "error", err)
				continue
			}
			if run == nil {
				continue
			}

			stopHB := w.startHeartbeat(ctx, run.ID.String())
			w.tick(ctx, workerID, run.ID.String())
			stopHB()
		}
	}
}

func (w *Worker) tick(ctx context.Context, workerID int, flowRunID string) {
	defer func() {
		if r := recover(); r != nil {
			w.Log.Error("flow tick panic", "worker_id", workerID, "flow_run_id", flowRunID, "panic", r)
		}
	}()

	id, err := parseID(flowRunID)
	if err != nil {
		w.Log.Warn("claimed flow run has invalid id", "flow_run_id", flowRunID, "error", err)
		return
	}

	if _, err := w.Dispatcher.Tick(ctx, id); err != nil {
		w.Log.Warn("flow tick failed", "worker_id", workerID, "flow_run_id", flowRunID, "error", err)
	}
}

func (w *Worker) startHeartbeat(ctx context.Context, flowRunID string) func() {
	done := make(chan struct{})
	id, err := parseID(flowRunID)
	if err != nil {
		return func() {}
	}
	go func() {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				_ = w.Dispatcher.Repo.Heartbeat(dbctx.Context{Ctx: ctx}, id)
			}
		}
	}()
	return func() { close(done) }
}
