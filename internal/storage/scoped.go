package storage

import (
	"context"
	"fmt"
)

// ScopedPool is the view of a Pool an edge condition sees while
// deciding whether to fire: the shared adapter pool narrowed to the
// task-name -> task-id mapping the engine resolved for one particular
// combination of finished upstream nodes. Mirrors Selinon's
// `StoragePool(id_mapping)` constructed fresh per combination in
// `_start_new_from_finished`.
type ScopedPool struct {
	pool      *Pool
	flowName  string
	idMapping map[string]string
}

func NewScopedPool(pool *Pool, flowName string, idMapping map[string]string) *ScopedPool {
	return &ScopedPool{pool: pool, flowName: flowName, idMapping: idMapping}
}

// Get retrieves the result a finished upstream task stored, by its
// name, through the named adapter.
func (s *ScopedPool) Get(ctx context.Context, storageName, taskName string) (any, error) {
	taskID, ok := s.idMapping[taskName]
	if !ok {
		return nil, fmt.Errorf("storage: no finished instance of task %q in this combination", taskName)
	}
	return s.pool.Get(ctx, storageName, s.flowName, taskName, taskID)
}
