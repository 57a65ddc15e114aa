package storage

import "context"

// Adapter is a single named storage backend a flow can read task
// results from and write task results to. Each flow's configuration
// maps node names to the adapter they use; the Pool resolves the
// mapping and keeps each adapter's connection lazily established.
//
// Grounded on selinon/dataStorage.py's retrieve/store contract.
type Adapter interface {
	// Connect establishes the backend connection. Called at most once
	// per adapter instance, guarded by Pool's double-checked lock.
	Connect(ctx context.Context) error

	// Connected reports whether Connect has already succeeded. Must be
	// safe to call without holding any lock.
	Connected() bool

	Disconnect(ctx context.Context) error

	// Retrieve fetches the stored result of taskName/taskID within
	// flowName.
	Retrieve(ctx context.Context, flowName, taskName, taskID string) (any, error)

	// Store persists the result of taskName/taskID within flowName and
	// returns an identifier the caller can later pass to Retrieve.
	Store(ctx context.Context, flowName, taskName, taskID string, nodeArgs, result any) (string, error)
}
