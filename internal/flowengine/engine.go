package flowengine

import (
	"context"
	"sort"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/storage"
	"github.com/flowmesh/flowmesh/internal/tracing"
)

const (
	startRetrySeconds = 2
	maxRetrySeconds   = 120
)

type activeRef struct {
	ref    NodeRef
	handle broker.Handle
}

// SystemState is one flow instance's in-memory working state for the
// duration of a single tick. It is constructed fresh from a Snapshot
// at the start of every tick and flattened back into one at the end
// — nothing here survives between ticks except through the Snapshot.
//
// Field-for-field and method-for-method grounded on
// celeriac/systemState.py's SystemState class.
type SystemState struct {
	dispatcherID string
	flowName     string
	registry     *Registry
	pool         *storage.Pool
	driver       broker.Driver
	tracer       tracing.Tracer

	nodeArgs any
	parent   any

	activeNodes     []activeRef
	finishedNodes   map[string][]string
	failedNodes     map[string][]string
	waitingEdgesIdx []int
	waitingEdges    []Edge

	retry *int
}

// New constructs a SystemState for one tick, rebinding a broker.Handle
// for every node reference the snapshot says was active. Rebinding
// failures are returned immediately — a dead handle means the
// snapshot itself cannot be trusted to make progress this tick.
func New(ctx context.Context, dispatcherID, flowName string, registry *Registry, pool *storage.Pool, driver broker.Driver, tracer tracing.Tracer, nodeArgs, parent any, snap *Snapshot) (*SystemState, error) {
	if tracer == nil {
		tracer = tracing.Noop{}
	}
	if snap == nil {
		snap = &Snapshot{}
	}
	snap.ensure()

	s := &SystemState{
		dispatcherID:    dispatcherID,
		flowName:        flowName,
		registry:        registry,
		pool:            pool,
		driver:          driver,
		tracer:          tracer,
		nodeArgs:        nodeArgs,
		parent:          parent,
		finishedNodes:   snap.FinishedNodes,
		failedNodes:     snap.FailedNodes,
		waitingEdgesIdx: append([]int(nil), snap.WaitingEdges...),
		retry:           snap.Retry,
	}

	for _, ref := range snap.ActiveNodes {
		isSubflow := registry.IsSubflow(ref.Name)
		h, err := driver.Rebind(ctx, ref.Name, ref.ID, isSubflow)
		if err != nil {
			return nil, err
		}
		s.activeNodes = append(s.activeNodes, activeRef{ref: ref, handle: h})
	}

	return s, nil
}

// NodeArgs returns the flow's current node_args (mutated in place by
// the auto-args rule the first time a lone starting task finishes).
func (s *SystemState) NodeArgs() any { return s.nodeArgs }

// ToSnapshot flattens the working state back into its durable form.
func (s *SystemState) ToSnapshot() *Snapshot {
	refs := make([]NodeRef, len(s.activeNodes))
	for i, a := range s.activeNodes {
		refs[i] = a.ref
	}
	return &Snapshot{
		ActiveNodes:   refs,
		FinishedNodes: s.finishedNodes,
		FailedNodes:   s.failedNodes,
		WaitingEdges:  append([]int(nil), s.waitingEdgesIdx...),
		NodeArgs:      s.nodeArgs,
		Parent:        s.parent,
		Retry:         s.retry,
	}
}

// Retry returns the number of seconds until the next tick should run,
// or nil if the flow instance has nothing left to do this tick cycle
// (either finished, or blocked on a fallback-less failure that has
// already surfaced as an error).
func (s *SystemState) Retry() *int { return s.retry }

/*
Update runs exactly one tick: poll active nodes for completion, fire
any edges the newly-finished nodes unblock, run the fallback search if
every active node is done and some have failed, and finally recompute
the retry delay. Returns FlowError if failed nodes exist and no
fallback configuration resolves them.

Grounded on celeriac/systemState.py's `update()`.
*/
func (s *SystemState) Update(ctx context.Context) (*int, error) {
	if len(s.activeNodes) == 0 && len(s.finishedNodes) == 0 && len(s.waitingEdgesIdx) == 0 {
		return s.startAndUpdateRetry(ctx)
	}

	newFinished, err := s.getSuccessful(ctx)
	if err != nil {
		return nil, err
	}

	if len(newFinished) > 0 {
		s.waitingEdges = idxsToEdges(s.registry.EdgeTable(s.flowName), s.waitingEdgesIdx)
	}
	for _, n := range newFinished {
		s.updateWaitingEdges(n.ref.Name)
	}

	var fallbackStarted []activeRef
	if len(s.activeNodes) == 0 && len(s.failedNodes) > 0 {
		fallbackStarted, err = s.runFallback(ctx)
		if err != nil {
			return nil, err
		}
		if len(fallbackStarted) == 0 && len(s.failedNodes) > 0 {
			s.retry = nil
			return nil, &FlowError{FlowName: s.flowName, Failed: sortedKeys(s.failedNodes)}
		}
	}

	return s.continueAndUpdateRetry(ctx, newFinished, fallbackStarted)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func idxsToEdges(table []Edge, idxs []int) []Edge {
	edges := make([]Edge, 0, len(idxs))
	for _, i := range idxs {
		edges = append(edges, table[i])
	}
	return edges
}
