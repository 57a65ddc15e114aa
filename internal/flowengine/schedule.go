package flowengine

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/tracing"
)

/*
startNode dispatches one node — a task through the broker, or a
subflow as a nested flow instance — applying this flow's propagation
switches to decide what node_args/parent the child actually receives.
The started reference is appended to activeNodes unless the node is
configured as nowait (fire-and-forget: started, but never waited on).

Grounded on celeriac/systemState.py's `_start_node`.
*/
func (s *SystemState) startNode(ctx context.Context, nodeName string, parent, nodeArgs any) (activeRef, error) {
	cfg := s.registry.FlowConfig(s.flowName)

	var ref NodeRef
	var handle broker.Handle

	if s.registry.IsSubflow(nodeName) {
		childArgs := nodeArgs
		if !cfg.PropagateNodeArgs.enabledFor(nodeName) {
			childArgs = nil
		}
		childParent := parent
		if !cfg.PropagateParent.enabledFor(nodeName) {
			childParent = nil
		}

		id, h, err := s.driver.DelaySubflow(ctx, nodeName, childArgs, childParent)
		if err != nil {
			return activeRef{}, err
		}
		ref = NodeRef{Name: nodeName, ID: id}
		handle = h

		s.tracer.Trace(ctx, tracing.SubflowSchedule, map[string]any{
			"flow_name":           s.flowName,
			"dispatcher_id":       s.dispatcherID,
			"child_flow_name":     nodeName,
			"child_dispatcher_id": id,
			"parent":              childParent,
			"args":                childArgs,
		})
	} else {
		id, h, err := s.driver.Delay(ctx, nodeName, s.flowName, parent, nodeArgs)
		if err != nil {
			return activeRef{}, err
		}
		ref = NodeRef{Name: nodeName, ID: id}
		handle = h

		s.tracer.Trace(ctx, tracing.TaskSchedule, map[string]any{
			"flow_name":     s.flowName,
			"dispatcher_id": s.dispatcherID,
			"task_name":     nodeName,
			"task_id":       id,
			"parent":        parent,
			"args":          nodeArgs,
		})
	}

	rec := activeRef{ref: ref, handle: handle}
	if !cfg.NowaitNodes[nodeName] {
		s.activeNodes = append(s.activeNodes, rec)
	}
	return rec, nil
}

// updateWaitingEdges records every edge that names nodeName among its
// "from" set as waiting, if it is not already. waiting_edges is
// additive-only for the lifetime of a flow instance: once an edge is
// recorded, it is never removed, even after it fires (REDESIGN FLAGS
// open question 2).
func (s *SystemState) updateWaitingEdges(nodeName string) {
	for idx, edge := range s.registry.EdgeTable(s.flowName) {
		if !edge.involves(nodeName) {
			continue
		}
		if containsInt(s.waitingEdgesIdx, idx) {
			continue
		}
		s.waitingEdges = append(s.waitingEdges, edge)
		s.waitingEdgesIdx = append(s.waitingEdgesIdx, idx)
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
