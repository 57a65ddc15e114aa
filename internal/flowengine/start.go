package flowengine

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/storage"
	"github.com/flowmesh/flowmesh/internal/tracing"
)

/*
startAndUpdateRetry is the very first tick of a flow instance: evaluate
every start edge (From == nil) in the registry's edge table and, for
every one whose condition holds, start its "to" nodes and record the
edges they newly block on. At least one start edge must exist — an
edge table with none is a ConfigError, not a retryable failure.

Grounded on celeriac/systemState.py's `_start_and_update_retry`.
*/
func (s *SystemState) startAndUpdateRetry(ctx context.Context) (*int, error) {
	s.tracer.Trace(ctx, tracing.FlowStart, map[string]any{
		"flow_name":     s.flowName,
		"dispatcher_id": s.dispatcherID,
		"args":          s.nodeArgs,
	})

	table := s.registry.EdgeTable(s.flowName)
	if table == nil {
		return nil, &ConfigError{FlowName: s.flowName, Reason: "flow has no edge table registered"}
	}

	var startEdges []Edge
	for _, e := range table {
		if e.IsStart() {
			startEdges = append(startEdges, e)
		}
	}
	if len(startEdges) == 0 {
		return nil, &ConfigError{FlowName: s.flowName, Reason: "flow has no starting edge"}
	}

	scoped := storage.NewScopedPool(s.pool, s.flowName, nil)
	for _, edge := range startEdges {
		fire, err := edge.Condition(ctx, scoped, s.nodeArgs)
		if err != nil {
			return nil, err
		}
		if !fire {
			continue
		}
		for _, toName := range edge.To {
			if _, err := s.startNode(ctx, toName, s.parent, s.nodeArgs); err != nil {
				return nil, err
			}
			s.updateWaitingEdges(toName)
		}
	}

	if len(s.activeNodes) > 0 {
		v := startRetrySeconds
		s.retry = &v
	} else {
		s.retry = nil
	}

	return s.retry, nil
}
