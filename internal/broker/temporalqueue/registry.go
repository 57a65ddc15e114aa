package temporalqueue

import (
	"fmt"
	"sync"

	"github.com/flowmesh/flowmesh/internal/broker"
)

// Handler is broker.Handler — kept as a local alias so call sites in
// this package read naturally, the same role the teacher's
// runtime.Handler/runtime.Registry played for job_type dispatch.
type Handler = broker.Handler

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]Handler{}}
}

func (r *Registry) Register(taskName string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskName] = h
}

func (r *Registry) Get(taskName string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskName]
	return h, ok
}

var errNoHandler = func(taskName string) error {
	return fmt.Errorf("temporalqueue: no handler registered for task %q", taskName)
}
