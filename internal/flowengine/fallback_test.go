package flowengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/condition"
)

func singleTaskRegistry(flowName string, failures map[string]*FailureNode) *Registry {
	reg := NewRegistry()
	reg.AddNode(Node{Name: "A", Kind: NodeTask})
	reg.AddNode(Node{Name: "R", Kind: NodeTask})
	reg.SetEdgeTable(flowName, []Edge{
		{From: nil, To: []string{"A"}, Condition: condition.Always},
	})
	reg.SetFlowConfig(flowName, FlowConfig{})
	if failures != nil {
		reg.SetFailureTree(flowName, failures)
	}
	return reg
}

// TestEngine_FallbackRecovers checks that a failed node whose failure
// tree entry names a recovery node gets that node dispatched, and that
// the failed id is consumed (so it isn't re-offered to a future,
// smaller combination search).
func TestEngine_FallbackRecovers(t *testing.T) {
	ctx := context.Background()
	reg := singleTaskRegistry("recoverable", map[string]*FailureNode{
		"A": {Fallback: []string{"R"}},
	})
	driver := newFakeDriver()

	state, err := New(ctx, "run-1", "recoverable", reg, nil, driver, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = state.Update(ctx)
	require.NoError(t, err)

	snap := state.ToSnapshot()
	aRef := refByName(t, snap.ActiveNodes, "A")
	driver.handle(aRef.ID).set("failed", nil)

	state, err = New(ctx, "run-1", "recoverable", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	wait, err := state.Update(ctx)
	require.NoError(t, err)
	require.NotNil(t, wait)
	require.Equal(t, startRetrySeconds, *wait, "starting a fallback resets the backoff")

	snap = state.ToSnapshot()
	require.Len(t, refsByName(snap.ActiveNodes, "R"), 1, "fallback's recovery node must be dispatched")
	require.Empty(t, snap.FailedNodes["A"], "consumed failure must not linger in failed_nodes")
}

// TestEngine_FallbackDropSilentlyEndsFlow checks the Drop sentinel: the
// failure is consumed, nothing is dispatched, and — if nothing else is
// pending — the flow reports done (nil retry) rather than FlowError.
func TestEngine_FallbackDropSilentlyEndsFlow(t *testing.T) {
	ctx := context.Background()
	reg := singleTaskRegistry("droppable", map[string]*FailureNode{
		"A": {Drop: true},
	})
	driver := newFakeDriver()

	state, err := New(ctx, "run-1", "droppable", reg, nil, driver, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = state.Update(ctx)
	require.NoError(t, err)

	snap := state.ToSnapshot()
	aRef := refByName(t, snap.ActiveNodes, "A")
	driver.handle(aRef.ID).set("failed", nil)

	state, err = New(ctx, "run-1", "droppable", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	wait, err := state.Update(ctx)
	require.NoError(t, err)
	require.Nil(t, wait, "a dropped failure with nothing else pending must end the flow cleanly")

	snap = state.ToSnapshot()
	require.Empty(t, snap.FailedNodes["A"])
	require.Empty(t, snap.ActiveNodes)
}

// TestEngine_NoFallbackIsFlowError checks that a failure with no
// matching failure-tree entry at all (not even a Drop) surfaces as a
// terminal FlowError naming the failed node.
func TestEngine_NoFallbackIsFlowError(t *testing.T) {
	ctx := context.Background()
	reg := singleTaskRegistry("unrecoverable", nil)
	driver := newFakeDriver()

	state, err := New(ctx, "run-1", "unrecoverable", reg, nil, driver, nil, nil, nil, nil)
	require.NoError(t, err)
	_, err = state.Update(ctx)
	require.NoError(t, err)

	snap := state.ToSnapshot()
	aRef := refByName(t, snap.ActiveNodes, "A")
	driver.handle(aRef.ID).set("failed", nil)

	state, err = New(ctx, "run-1", "unrecoverable", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	_, err = state.Update(ctx)

	var flowErr *FlowError
	require.ErrorAs(t, err, &flowErr)
	require.Equal(t, []string{"A"}, flowErr.Failed)
}
