package flowengine

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/storage"
)

/*
startNewFromFinished is the heart of the engine: for every
newly-finished node, find the waiting edges it participates in, build
every combination of finished-node ids across that edge's full "from"
set (the just-finished node crossed with every other "from" name's
already-finished ids — see REDESIGN FLAGS open question 1), evaluate
the edge's condition once per combination, and start the "to" nodes
for every combination whose condition holds.

Also implements the auto-args rule: if node_args was never supplied at
flow start, the flow has exactly one finished node so far, it is the
only one that has ever finished, and it is not a subflow, then
node_args becomes that node's result.

Grounded on celeriac/systemState.py's `_start_new_from_finished`.
*/
func (s *SystemState) startNewFromFinished(ctx context.Context, newFinished []activeRef) ([]activeRef, error) {
	var started []activeRef

	if s.nodeArgs == nil && len(newFinished) == 1 && len(s.activeNodes) == 0 && len(s.finishedNodes) == 0 {
		only := newFinished[0]
		if !s.registry.IsSubflow(only.ref.Name) {
			result, err := only.handle.Result(ctx)
			if err != nil {
				return nil, err
			}
			s.nodeArgs = result
		}
	}

	for _, node := range newFinished {
		for _, edge := range s.waitingEdges {
			if !edge.involves(node.ref.Name) {
				continue
			}

			combinations := combineFromNodes(s, edge, node.ref)
			for _, combo := range combinations {
				parent := map[string]any{}
				idMapping := map[string]string{}

				for _, start := range combo {
					if s.registry.IsSubflow(start.Name) {
						cfg := s.registry.FlowConfig(s.flowName)
						if cfg.PropagateFinished.enabledFor(start.Name) {
							nested := map[string]any{}
							if err := s.extendParentFromFlow(ctx, nested, start.ID); err != nil {
								return nil, err
							}
							parent[start.Name] = nested
						}
					} else {
						parent[start.Name] = start.ID
						idMapping[start.Name] = start.ID
					}
				}

				scoped := storage.NewScopedPool(s.pool, s.flowName, idMapping)
				fire, err := edge.Condition(ctx, scoped, s.nodeArgs)
				if err != nil {
					return nil, err
				}
				if !fire {
					continue
				}

				for _, toName := range edge.To {
					rec, err := s.startNode(ctx, toName, parent, s.nodeArgs)
					if err != nil {
						return nil, err
					}
					started = append(started, rec)
				}
			}
		}

		s.finishedNodes[node.ref.Name] = append(s.finishedNodes[node.ref.Name], node.ref.ID)
	}

	return started, nil
}

// combineFromNodes builds the Cartesian product of node references
// across an edge's "from" set, with the just-finished node fixed to
// its single instance and every other "from" name ranging over its
// already-finished ids.
//
//	A   B
//	 \ /
//	  C
//
// A: id1, id2 (already finished)   B: id3 (just finished)
// yields (id1, id3), (id2, id3) — never re-fires id1 x anything already
// consumed in a prior tick, since finishedNodes only grows and the
// just-finished node is always one of the two factors.
func combineFromNodes(s *SystemState, edge Edge, justFinished NodeRef) [][]NodeRef {
	perName := make([][]NodeRef, len(edge.From))
	for i, name := range edge.From {
		if name == justFinished.Name {
			perName[i] = []NodeRef{justFinished}
			continue
		}
		ids := s.finishedNodes[name]
		refs := make([]NodeRef, len(ids))
		for j, id := range ids {
			refs[j] = NodeRef{Name: name, ID: id}
		}
		perName[i] = refs
	}
	return cartesianProduct(perName)
}

func cartesianProduct(lists [][]NodeRef) [][]NodeRef {
	result := [][]NodeRef{{}}
	for _, list := range lists {
		if len(list) == 0 {
			return nil
		}
		var next [][]NodeRef
		for _, prefix := range result {
			for _, item := range list {
				combo := make([]NodeRef, len(prefix)+1)
				copy(combo, prefix)
				combo[len(prefix)] = item
				next = append(next, combo)
			}
		}
		result = next
	}
	return result
}

// extendParentFromFlow walks a finished subflow's own result (itself a
// flattened finished_nodes-style map) into parent_dict, recursing
// through any nested subflow entries. Grounded on
// celeriac/systemState.py's `_extend_parent_from_flow`.
func (s *SystemState) extendParentFromFlow(ctx context.Context, parent map[string]any, subflowDispatcherID string) error {
	nodeIDs, err := s.driver.SubflowResult(ctx, subflowDispatcherID)
	if err != nil {
		return err
	}

	for nodeName, ids := range nodeIDs {
		if s.registry.IsSubflow(nodeName) {
			for _, id := range ids {
				if err := s.extendParentFromFlow(ctx, parent, id); err != nil {
					return err
				}
			}
			continue
		}
		existing, _ := parent[nodeName].([]string)
		parent[nodeName] = append(existing, ids...)
	}
	return nil
}

// continueAndUpdateRetry fires new edges for the newly-finished nodes,
// then recomputes the retry delay: reset to the starting backoff if
// anything was started this tick (either by edge firing or by a
// fallback), double (capped) if nodes are still active with nothing
// new to do, or nil if there is nothing left to process.
//
// Grounded on celeriac/systemState.py's `_continue_and_update_retry`.
func (s *SystemState) continueAndUpdateRetry(ctx context.Context, newFinished, fallbackStarted []activeRef) (*int, error) {
	started, err := s.startNewFromFinished(ctx, newFinished)
	if err != nil {
		return nil, err
	}

	switch {
	case len(started) > 0 || len(fallbackStarted) > 0:
		v := startRetrySeconds
		s.retry = &v
	case len(s.activeNodes) > 0:
		next := maxRetrySeconds
		if s.retry != nil {
			next = *s.retry * 2
			if next > maxRetrySeconds {
				next = maxRetrySeconds
			}
		} else {
			next = startRetrySeconds
		}
		s.retry = &next
	default:
		s.retry = nil
	}

	return s.retry, nil
}
