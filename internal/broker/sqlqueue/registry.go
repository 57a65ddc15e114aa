package sqlqueue

import (
	"fmt"
	"sync"

	"github.com/flowmesh/flowmesh/internal/broker"
)

// Registry maps a task node's name to the broker.Handler that runs it,
// the same role the teacher's runtime.Registry played for job_type
// dispatch in the SQL-backed job worker.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]broker.Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[string]broker.Handler{}}
}

func (r *Registry) Register(taskName string, h broker.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskName] = h
}

func (r *Registry) Get(taskName string) (broker.Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[taskName]
	return h, ok
}

func errNoHandler(taskName string) error {
	return fmt.Errorf("sqlqueue: no handler registered for task %q", taskName)
}
