package broker

import "context"

// Handler runs one task node's body. Actually executing a node is an
// explicit Non-goal of the engine itself — a Handler is the seam a
// deployment plugs its own task logic into, shared by every Driver
// implementation so the same handler set can run behind either broker.
type Handler interface {
	Run(ctx context.Context, nodeArgs, parent any) (any, error)
}
