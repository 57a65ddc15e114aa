package storage

import (
	"context"
	"fmt"
	"sync"
)

/*
Pool carries every storage adapter a deployment knows about, keyed by
the adapter name a flow's task configuration references. Connections
are established lazily, on first use, and at most once per adapter —
mirrored from celeriac/storagePool.py's StoragePool._connected_storage:
check Connected() unlocked, and only take the per-adapter lock (and
check again) if a connection attempt looks necessary.

A Pool is shared across every concurrently-ticking flow instance in
the process, so the per-adapter lock must serialize concurrent first
connects without serializing every read/write through it.
*/
type Pool struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	locks    map[string]*sync.Mutex
}

// NewPool builds a Pool from a static adapter mapping, as compiled
// from a flow registry's storage configuration.
func NewPool(adapters map[string]Adapter) *Pool {
	p := &Pool{
		adapters: make(map[string]Adapter, len(adapters)),
		locks:    make(map[string]*sync.Mutex, len(adapters)),
	}
	for name, a := range adapters {
		p.adapters[name] = a
		p.locks[name] = &sync.Mutex{}
	}
	return p
}

func (p *Pool) connectedAdapter(ctx context.Context, storageName string) (Adapter, error) {
	p.mu.RLock()
	adapter, ok := p.adapters[storageName]
	lock := p.locks[storageName]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: no adapter configured for %q", storageName)
	}

	if !adapter.Connected() {
		lock.Lock()
		if !adapter.Connected() {
			if err := adapter.Connect(ctx); err != nil {
				lock.Unlock()
				return nil, fmt.Errorf("storage: connect %q: %w", storageName, err)
			}
		}
		lock.Unlock()
	}

	return adapter, nil
}

// Get retrieves the stored result for taskName/taskID within flowName,
// via the named adapter. taskID is passed as given; ScopedPool.Get is
// the variant that looks the id up from a task name.
func (p *Pool) Get(ctx context.Context, storageName, flowName, taskName, taskID string) (any, error) {
	adapter, err := p.connectedAdapter(ctx, storageName)
	if err != nil {
		return nil, err
	}
	return adapter.Retrieve(ctx, flowName, taskName, taskID)
}

// Set stores a task result via the named adapter and returns the id
// the caller should remember for later Get calls.
func (p *Pool) Set(ctx context.Context, storageName, flowName, taskName, taskID string, nodeArgs, result any) (string, error) {
	adapter, err := p.connectedAdapter(ctx, storageName)
	if err != nil {
		return "", err
	}
	return adapter.Store(ctx, flowName, taskName, taskID, nodeArgs, result)
}

// CloseAll disconnects every connected adapter. Intended for process
// shutdown, not per-tick use.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, a := range p.adapters {
		if a.Connected() {
			_ = a.Disconnect(ctx)
		}
	}
}
