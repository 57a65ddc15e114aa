package sqlqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/dispatcher"
	"github.com/flowmesh/flowmesh/internal/flowengine"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

// Driver is the SQL-only broker.Driver: a subflow dispatch is a new
// FlowRun row the sqlqueue Worker pool will eventually claim; a task
// dispatch runs its Handler in a goroutine of this process, tracked
// in an in-memory execTracker. Grounded on the teacher's
// internal/jobs/worker/worker.go dispatch-to-handler shape, adapted
// from "claim then run synchronously in the claiming goroutine" to
// "run in a goroutine started at Delay time", since a task dispatch
// here is not itself a claimable row.
type Driver struct {
	Dispatcher *dispatcher.Dispatcher
	Registry   *Registry
	Log        *logger.Logger

	tracker *execTracker
}

func NewDriver(d *dispatcher.Dispatcher, registry *Registry, log *logger.Logger) *Driver {
	return &Driver{
		Dispatcher: d,
		Registry:   registry,
		Log:        log,
		tracker:    newExecTracker(),
	}
}

func (d *Driver) dbCtx(ctx context.Context) dbctx.Context {
	return dbctx.Context{Ctx: ctx}
}

func (d *Driver) Delay(ctx context.Context, taskName, flowName string, parent, nodeArgs any) (string, broker.Handle, error) {
	h, ok := d.Registry.Get(taskName)
	if !ok {
		return "", nil, errNoHandler(taskName)
	}

	id := "node-" + uuid.New().String()
	st := d.tracker.start(id)

	go func() {
		result, err := h.Run(context.Background(), nodeArgs, parent)
		st.finish(result, err)
	}()

	return id, &taskHandle{tracker: d.tracker, id: id}, nil
}

func (d *Driver) DelaySubflow(ctx context.Context, flowName string, nodeArgs, parent any) (string, broker.Handle, error) {
	run, err := d.Dispatcher.Enqueue(ctx, flowName, nodeArgs, parent)
	if err != nil {
		return "", nil, fmt.Errorf("sqlqueue: enqueue subflow: %w", err)
	}
	id := run.ID.String()
	return id, &subflowHandle{driver: d, flowRunID: id}, nil
}

func (d *Driver) Rebind(ctx context.Context, nodeName, id string, isSubflow bool) (broker.Handle, error) {
	if isSubflow {
		return &subflowHandle{driver: d, flowRunID: id}, nil
	}
	return &taskHandle{tracker: d.tracker, id: id}, nil
}

// SubflowResult reads the finished, nested flow instance's own
// finished-node map out of its persisted Snapshot.
func (d *Driver) SubflowResult(ctx context.Context, flowRunID string) (map[string][]string, error) {
	id, err := uuid.Parse(flowRunID)
	if err != nil {
		return nil, fmt.Errorf("sqlqueue: invalid flow_run_id %q: %w", flowRunID, err)
	}
	run, err := d.Dispatcher.Repo.GetByID(d.dbCtx(ctx), id)
	if err != nil {
		return nil, err
	}
	if run == nil || len(run.Snapshot) == 0 {
		return map[string][]string{}, nil
	}
	var snap flowengine.Snapshot
	if err := json.Unmarshal(run.Snapshot, &snap); err != nil {
		return nil, err
	}
	return snap.FinishedNodes, nil
}
