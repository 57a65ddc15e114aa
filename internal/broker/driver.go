package broker

import "context"

// Handle is a non-blocking reference to a dispatched node's eventual
// outcome. Mirrors Celery's AsyncResult as used in
// celeriac/systemState.py (`result.successful()`, `result.failed()`,
// `result.result`): polled, never awaited, from inside a tick.
type Handle interface {
	Successful(ctx context.Context) (bool, error)
	Failed(ctx context.Context) (bool, error)
	Result(ctx context.Context) (any, error)
}

// Driver is the broker boundary the engine schedules work through. A
// task dispatch enqueues one unit of work; a subflow dispatch starts
// a nested flow instance. Both return an id (stable across ticks, so
// it round-trips through a persisted Snapshot) and a live Handle bound
// to that id for this process's lifetime.
type Driver interface {
	Delay(ctx context.Context, taskName, flowName string, parent, nodeArgs any) (id string, h Handle, err error)
	DelaySubflow(ctx context.Context, flowName string, nodeArgs, parent any) (id string, h Handle, err error)

	// Rebind reconstructs a live Handle for a node reference recovered
	// from a persisted Snapshot — e.g. after a process restart, or
	// after the owning flow instance's tick resumed from storage.
	Rebind(ctx context.Context, nodeName, id string, isSubflow bool) (Handle, error)

	// SubflowResult returns the finished-node map (node name -> ids)
	// of a completed subflow instance, for parent-propagation into a
	// node that waits on it. Only valid once the subflow has
	// succeeded.
	SubflowResult(ctx context.Context, dispatcherID string) (map[string][]string, error)
}
