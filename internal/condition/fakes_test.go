package condition

import (
	"context"
	"testing"

	"github.com/flowmesh/flowmesh/internal/storage"
)

// fakeAdapter is a one-value storage.Adapter: every Retrieve returns
// whatever Store last received, regardless of flow/task/id. Enough to
// exercise a CEL predicate's "results" lookup without a real backend.
type fakeAdapter struct {
	connected bool
	value     any
}

func (a *fakeAdapter) Connect(ctx context.Context) error { a.connected = true; return nil }
func (a *fakeAdapter) Connected() bool                   { return a.connected }
func (a *fakeAdapter) Disconnect(ctx context.Context) error {
	a.connected = false
	return nil
}

func (a *fakeAdapter) Retrieve(ctx context.Context, flowName, taskName, taskID string) (any, error) {
	return a.value, nil
}

func (a *fakeAdapter) Store(ctx context.Context, flowName, taskName, taskID string, nodeArgs, result any) (string, error) {
	a.value = result
	return "id", nil
}

// storagePoolWithResult builds a ScopedPool whose "mem" adapter
// resolves every lookup to value, with the given task name already
// present in the id mapping a CEL predicate's storageOf expects.
func storagePoolWithResult(t *testing.T, taskName string, value any) *storage.ScopedPool {
	t.Helper()
	pool := storage.NewPool(map[string]storage.Adapter{"mem": &fakeAdapter{value: value}})
	return storage.NewScopedPool(pool, "test-flow", map[string]string{taskName: "id-1"})
}
