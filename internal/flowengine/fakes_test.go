package flowengine

import (
	"context"
	"fmt"
	"sync"

	"github.com/flowmesh/flowmesh/internal/broker"
)

// fakeHandle is a broker.Handle whose outcome the test sets directly,
// standing in for a real Celery/Temporal result the production drivers
// poll. Grounded on the same roll-your-own-fake approach the teacher's
// divinesense sibling uses for its DAG executor (MockRegistry in
// executor_dag_test.go), simplified to a plain struct since
// broker.Handle only has three trivial methods.
type fakeHandle struct {
	mu     sync.Mutex
	status string // "pending", "success", "failed"
	result any
}

func (h *fakeHandle) set(status string, result any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
	h.result = result
}

func (h *fakeHandle) Successful(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == "success", nil
}

func (h *fakeHandle) Failed(ctx context.Context) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status == "failed", nil
}

func (h *fakeHandle) Result(ctx context.Context) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, nil
}

// fakeDriver is an in-memory broker.Driver: Delay/DelaySubflow hand out
// sequential ids and a fakeHandle the test can later flip to success or
// failed, Rebind looks the handle back up by id, and SubflowResult
// serves whatever finished-node map the test pre-seeded for a given
// dispatcher id.
type fakeDriver struct {
	mu             sync.Mutex
	seq            int
	handles        map[string]*fakeHandle
	subflowResults map[string]map[string][]string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		handles:        map[string]*fakeHandle{},
		subflowResults: map[string]map[string][]string{},
	}
}

func (d *fakeDriver) nextID(prefix string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return fmt.Sprintf("%s-%d", prefix, d.seq)
}

func (d *fakeDriver) Delay(ctx context.Context, taskName, flowName string, parent, nodeArgs any) (string, broker.Handle, error) {
	id := d.nextID(taskName)
	h := &fakeHandle{status: "pending"}
	d.mu.Lock()
	d.handles[id] = h
	d.mu.Unlock()
	return id, h, nil
}

func (d *fakeDriver) DelaySubflow(ctx context.Context, flowName string, nodeArgs, parent any) (string, broker.Handle, error) {
	id := d.nextID(flowName + "-sub")
	h := &fakeHandle{status: "pending"}
	d.mu.Lock()
	d.handles[id] = h
	d.mu.Unlock()
	return id, h, nil
}

func (d *fakeDriver) Rebind(ctx context.Context, nodeName, id string, isSubflow bool) (broker.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	h, ok := d.handles[id]
	if !ok {
		return nil, fmt.Errorf("fakeDriver: no handle registered for id %q", id)
	}
	return h, nil
}

func (d *fakeDriver) SubflowResult(ctx context.Context, dispatcherID string) (map[string][]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subflowResults[dispatcherID], nil
}

// handle looks up a previously-dispatched node's fakeHandle by the id
// the engine recorded in a Snapshot's ActiveNodes/FinishedNodes — the
// only way a test can reach into a dispatch it didn't make directly.
func (d *fakeDriver) handle(id string) *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.handles[id]
}

// refByName finds the single active ref with the given node name in a
// snapshot, failing the test if there isn't exactly one.
func refByName(t interface{ Fatalf(string, ...any) }, refs []NodeRef, name string) NodeRef {
	var matches []NodeRef
	for _, r := range refs {
		if r.Name == name {
			matches = append(matches, r)
		}
	}
	if len(matches) != 1 {
		t.Fatalf("refByName(%q): expected exactly 1 match, got %d (%v)", name, len(matches), matches)
	}
	return matches[0]
}

// refsByName finds every active ref with the given node name.
func refsByName(refs []NodeRef, name string) []NodeRef {
	var matches []NodeRef
	for _, r := range refs {
		if r.Name == name {
			matches = append(matches, r)
		}
	}
	return matches
}
