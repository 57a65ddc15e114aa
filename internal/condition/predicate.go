package condition

import (
	"context"

	"github.com/flowmesh/flowmesh/internal/storage"
)

// Predicate decides whether an edge should fire, given a storage view
// scoped to the id mapping the engine resolved for this particular
// combination of finished upstream nodes, and the flow's node_args.
// Predicates are expected to be read-only, but the engine does not
// enforce that — a predicate that errors aborts the tick the way any
// other transient storage error would.
type Predicate func(ctx context.Context, pool *storage.ScopedPool, nodeArgs any) (bool, error)

// Always is the default predicate for edges with no condition
// expression: it always fires.
func Always(ctx context.Context, pool *storage.ScopedPool, nodeArgs any) (bool, error) {
	return true, nil
}
