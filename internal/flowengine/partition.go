package flowengine

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/tracing"
)

/*
getSuccessful polls every currently-active node's handle exactly once,
partitioning it into finished (successful), failed (recorded into
failedNodes, keyed by node name, one id per failure so repeated
failures of the same node across fallback attempts are all tracked),
or still-running. Still-running nodes remain active; finished and
failed nodes are removed from activeNodes.

Grounded on celeriac/systemState.py's `_get_successful`.
*/
func (s *SystemState) getSuccessful(ctx context.Context) ([]activeRef, error) {
	var finished []activeRef
	var stillActive []activeRef

	for _, n := range s.activeNodes {
		ok, err := n.handle.Successful(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			s.tracer.Trace(ctx, tracing.NodeSuccessful, map[string]any{
				"flow_name":     s.flowName,
				"dispatcher_id": s.dispatcherID,
				"node_name":     n.ref.Name,
				"node_id":       n.ref.ID,
			})
			finished = append(finished, n)
			continue
		}

		failed, err := n.handle.Failed(ctx)
		if err != nil {
			return nil, err
		}
		if failed {
			what, _ := n.handle.Result(ctx)
			s.tracer.Trace(ctx, tracing.NodeFailure, map[string]any{
				"flow_name":     s.flowName,
				"dispatcher_id": s.dispatcherID,
				"node_name":     n.ref.Name,
				"node_id":       n.ref.ID,
				"what":          what,
			})
			s.failedNodes[n.ref.Name] = append(s.failedNodes[n.ref.Name], n.ref.ID)
			continue
		}

		stillActive = append(stillActive, n)
	}

	s.activeNodes = stillActive
	return finished, nil
}
