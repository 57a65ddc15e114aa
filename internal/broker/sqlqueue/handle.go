package sqlqueue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
)

// taskHandle polls an in-process execState. Unlike the Temporal
// driver's Handle, it cannot be reconstructed across a process
// restart — Rebind for a task id this process never started reports
// Failed, so the engine's fallback machinery takes over rather than
// waiting forever on an execution nobody is running anymore.
type taskHandle struct {
	tracker *execTracker
	id      string
}

func (h *taskHandle) state() (done, failed bool, ok bool) {
	st, found := h.tracker.get(h.id)
	if !found {
		return false, true, false
	}
	d, f, _, _ := st.snapshot()
	return d, f, true
}

func (h *taskHandle) Successful(ctx context.Context) (bool, error) {
	done, failed, found := h.state()
	if !found {
		return false, nil
	}
	return done && !failed, nil
}

func (h *taskHandle) Failed(ctx context.Context) (bool, error) {
	done, failed, found := h.state()
	if !found {
		// No execState for this id in this process: either it never
		// started here, or the process restarted after it did.
		return true, nil
	}
	return done && failed, nil
}

func (h *taskHandle) Result(ctx context.Context) (any, error) {
	st, found := h.tracker.get(h.id)
	if !found {
		return nil, fmt.Errorf("sqlqueue: no execution state for node %q", h.id)
	}
	_, _, result, err := st.snapshot()
	return result, err
}

// subflowHandle polls a nested FlowRun row's status column, the same
// way the flow-level dispatcher polls its own runnable rows.
type subflowHandle struct {
	driver    *Driver
	flowRunID string
}

func (h *subflowHandle) load(ctx context.Context) (*flowrun.FlowRun, error) {
	id, err := uuid.Parse(h.flowRunID)
	if err != nil {
		return nil, fmt.Errorf("sqlqueue: invalid flow_run_id %q: %w", h.flowRunID, err)
	}
	return h.driver.Dispatcher.Repo.GetByID(h.driver.dbCtx(ctx), id)
}

func (h *subflowHandle) Successful(ctx context.Context) (bool, error) {
	run, err := h.load(ctx)
	if err != nil || run == nil {
		return false, err
	}
	return run.Status == flowrun.StatusSucceeded, nil
}

func (h *subflowHandle) Failed(ctx context.Context) (bool, error) {
	run, err := h.load(ctx)
	if err != nil {
		return false, err
	}
	if run == nil {
		return true, nil
	}
	return run.Status == flowrun.StatusFailed || run.Status == flowrun.StatusCanceled, nil
}

func (h *subflowHandle) Result(ctx context.Context) (any, error) {
	return h.driver.SubflowResult(ctx, h.flowRunID)
}
