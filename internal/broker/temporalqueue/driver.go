package temporalqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/api/enums/v1"
	"go.temporal.io/sdk/client"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/dispatcher"
	"github.com/flowmesh/flowmesh/internal/flowengine"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
)

// Driver is the Temporal-backed broker.Driver: a task node becomes one
// NodeWorkflow execution, a subflow becomes a nested FlowRun row plus
// its own FlowWorkflow execution. Both are addressed by Temporal
// workflow ID, which doubles as the node reference id the engine
// persists in a Snapshot.
type Driver struct {
	Client     client.Client
	TaskQueue  string
	Dispatcher *dispatcher.Dispatcher
}

func (d *Driver) Delay(ctx context.Context, taskName, flowName string, parent, nodeArgs any) (string, broker.Handle, error) {
	id := "node-" + uuid.New().String()
	_, err := d.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: d.TaskQueue,
	}, NodeWorkflowName, NodeInput{TaskName: taskName, FlowName: flowName, Parent: parent, NodeArgs: nodeArgs})
	if err != nil {
		return "", nil, fmt.Errorf("temporalqueue: start node workflow: %w", err)
	}
	return id, &Handle{client: d.Client, workflowID: id}, nil
}

func (d *Driver) DelaySubflow(ctx context.Context, flowName string, nodeArgs, parent any) (string, broker.Handle, error) {
	run, err := d.Dispatcher.Enqueue(ctx, flowName, nodeArgs, parent)
	if err != nil {
		return "", nil, fmt.Errorf("temporalqueue: enqueue subflow: %w", err)
	}
	id := run.ID.String()
	_, err = d.Client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "flow-" + id,
		TaskQueue: d.TaskQueue,
	}, FlowWorkflowName, id)
	if err != nil {
		return "", nil, fmt.Errorf("temporalqueue: start flow workflow: %w", err)
	}
	return id, &Handle{client: d.Client, workflowID: "flow-" + id, flowRunID: id, isSubflow: true, driver: d}, nil
}

func (d *Driver) Rebind(ctx context.Context, nodeName, id string, isSubflow bool) (broker.Handle, error) {
	if isSubflow {
		return &Handle{client: d.Client, workflowID: "flow-" + id, flowRunID: id, isSubflow: true, driver: d}, nil
	}
	return &Handle{client: d.Client, workflowID: id}, nil
}

// SubflowResult reads the finished, nested flow instance's own
// finished-node map out of its persisted Snapshot — used for
// propagate_finished parent-building (flowengine.extendParentFromFlow).
func (d *Driver) SubflowResult(ctx context.Context, flowRunID string) (map[string][]string, error) {
	id, err := uuid.Parse(flowRunID)
	if err != nil {
		return nil, fmt.Errorf("temporalqueue: invalid flow_run_id %q: %w", flowRunID, err)
	}
	run, err := d.Dispatcher.Repo.GetByID(dbctx.Context{Ctx: ctx}, id)
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

// Handle polls a Temporal workflow execution's status without
// blocking — DescribeWorkflowExecution, never Get(), until the caller
// has already confirmed completion via Successful/Failed.
type Handle struct {
	client     client.Client
	workflowID string

	// Subflow handles additionally carry the underlying FlowRun id and
	// a back-reference to the driver, since a subflow's "result" is its
	// own finished-node map, not a workflow return value.
	flowRunID string
	isSubflow bool
	driver    *Driver
}

func (h *Handle) describe(ctx context.Context) (enums.WorkflowExecutionStatus, error) {
	resp, err := h.client.DescribeWorkflowExecution(ctx, h.workflowID, "")
	if err != nil {
		return enums.WORKFLOW_EXECUTION_STATUS_UNSPECIFIED, err
	}
	return resp.GetWorkflowExecutionInfo().GetStatus(), nil
}

func (h *Handle) Successful(ctx context.Context) (bool, error) {
	status, err := h.describe(ctx)
	if err != nil {
		return false, err
	}
	return status == enums.WORKFLOW_EXECUTION_STATUS_COMPLETED, nil
}

func (h *Handle) Failed(ctx context.Context) (bool, error) {
	status, err := h.describe(ctx)
	if err != nil {
		return false, err
	}
	switch status {
	case enums.WORKFLOW_EXECUTION_STATUS_FAILED,
		enums.WORKFLOW_EXECUTION_STATUS_TIMED_OUT,
		enums.WORKFLOW_EXECUTION_STATUS_TERMINATED,
		enums.WORKFLOW_EXECUTION_STATUS_CANCELED:
		return true, nil
	default:
		return false, nil
	}
}

func (h *Handle) Result(ctx context.Context) (any, error) {
	if h.isSubflow {
		return h.driver.SubflowResult(ctx, h.flowRunID)
	}
	run := h.client.GetWorkflow(ctx, h.workflowID, "")
	var out any
	if err := run.Get(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
