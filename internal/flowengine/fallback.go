package flowengine

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/tracing"
)

/*
runFallback searches the failure tree for the largest combination of
currently-failed node names that has a fallback defined, starting new
nodes for it and popping one failed id per involved node name (so a
node that failed more than once can be recovered once per fallback
attempt, and the combination search considers it again on a later
tick if it fails again). Only called once every active node has
finished for this tick (the caller enforces that).

Combinations are tried largest-first, in alphabetical order within
each size, matching celeriac/systemState.py's `_run_fallback`
(`itertools.combinations` over a sorted failed_nodes items list,
descending `i` from len(failed_nodes) to 1). A combination whose
failure-tree lookup panics with "not found" (a Python KeyError) is
simply skipped, not treated as an error — only exhausting every
combination with nothing recoverable is an error, and only at the
`Update` caller's level.

A fallback entry of `Drop` consumes the failure (pops one id per node,
same as a real fallback) but starts nothing and keeps searching
smaller combinations — mirroring `fallback is True` in the Python
source.
*/
func (s *SystemState) runFallback(ctx context.Context) ([]activeRef, error) {
	root := s.registry.FailureNodeRoot(s.flowName)
	if root == nil {
		return nil, nil
	}

	names := sortedKeys(s.failedNodes)

	for size := len(names); size >= 1; size-- {
		for _, combo := range combinationsOf(names, size) {
			node, ok := root[combo[0]]
			for _, name := range combo[1:] {
				if !ok {
					break
				}
				node, ok = node.Next[name]
			}
			if !ok || node == nil {
				continue
			}

			if node.Drop {
				s.consumeFailure(combo)
				s.tracer.Trace(ctx, tracing.FallbackStart, map[string]any{
					"flow_name":     s.flowName,
					"dispatcher_id": s.dispatcherID,
					"nodes":         combo,
					"fallback":      true,
				})
				continue
			}

			if len(node.Fallback) == 0 {
				continue
			}
			for _, toName := range node.Fallback {
				if _, known := s.registry.Node(toName); !known {
					return nil, &ConfigError{FlowName: s.flowName, Reason: "fallback references unknown node " + toName}
				}
			}

			parent := map[string]any{}
			for _, name := range combo {
				parent[name] = s.failedNodes[name][0]
			}
			s.consumeFailure(combo)

			s.tracer.Trace(ctx, tracing.FallbackStart, map[string]any{
				"flow_name":     s.flowName,
				"dispatcher_id": s.dispatcherID,
				"nodes":         combo,
				"fallback":      node.Fallback,
			})

			var started []activeRef
			for _, toName := range node.Fallback {
				rec, err := s.startNode(ctx, toName, parent, s.nodeArgs)
				if err != nil {
					return nil, err
				}
				started = append(started, rec)
			}
			// Wait for the fallback to finish before evaluating any
			// other combination, to avoid time-dependent flow
			// evaluation.
			return started, nil
		}
	}

	return nil, nil
}

// consumeFailure pops one failed id per node name in combo, deleting
// the node's entry entirely once its failed-id list is drained.
func (s *SystemState) consumeFailure(combo []string) {
	for _, name := range combo {
		ids := s.failedNodes[name]
		if len(ids) == 0 {
			continue
		}
		ids = ids[1:]
		if len(ids) == 0 {
			delete(s.failedNodes, name)
		} else {
			s.failedNodes[name] = ids
		}
	}
}

func combinationsOf(items []string, k int) [][]string {
	n := len(items)
	if k > n || k <= 0 {
		return nil
	}
	var result [][]string
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		combo := make([]string, k)
		for i, ix := range idx {
			combo[i] = items[ix]
		}
		result = append(result, combo)

		i := k - 1
		for i >= 0 && idx[i] == i+n-k {
			i--
		}
		if i < 0 {
			break
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
	return result
}
