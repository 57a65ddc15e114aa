package temporalqueue

import (
	"context"
	"time"

	"go.temporal.io/sdk/workflow"
)

// NodeInput is what a node workflow execution carries: which task to
// run, and the parent/node_args the engine resolved for it. The
// workflow ID doubles as the node's broker.Handle id, so the engine
// never needs a separate identifier scheme.
type NodeInput struct {
	TaskName string
	FlowName string
	Parent   any
	NodeArgs any
}

// NodeWorkflow executes exactly one task node's handler as a single
// activity. It exists only so task execution is observable and
// retried the way Temporal retries any activity — flowmesh does not
// interpret the handler's result beyond handing it back through
// Handle.Result.
func NodeWorkflow(ctx workflow.Context, in NodeInput) (any, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 24 * time.Hour,
		HeartbeatTimeout:    30 * time.Second,
	})
	var out any
	err := workflow.ExecuteActivity(ctx, ActivityRunNode, in).Get(ctx, &out)
	return out, err
}

const (
	NodeWorkflowName = "flowmesh.Node"
	ActivityRunNode  = "flowmesh.RunNode"
)

// NodeActivities wraps a Registry so NodeWorkflow can look up and
// invoke the right Handler for its task name.
type NodeActivities struct {
	Registry *Registry
}

func (a *NodeActivities) RunNode(ctx context.Context, in NodeInput) (any, error) {
	h, ok := a.Registry.Get(in.TaskName)
	if !ok {
		return nil, errNoHandler(in.TaskName)
	}
	return h.Run(ctx, in.NodeArgs, in.Parent)
}
