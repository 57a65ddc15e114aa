package flowengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/condition"
)

// fanInRegistry builds the textbook two-parent fan-in: two independent
// start edges schedule two instances of A and one instance of B, and a
// single edge from {A, B} schedules C once both have finished.
func fanInRegistry() *Registry {
	reg := NewRegistry()
	reg.AddNode(Node{Name: "A", Kind: NodeTask})
	reg.AddNode(Node{Name: "B", Kind: NodeTask})
	reg.AddNode(Node{Name: "C", Kind: NodeTask})
	reg.SetEdgeTable("fanin", []Edge{
		{From: nil, To: []string{"A"}, Condition: condition.Always},
		{From: nil, To: []string{"A"}, Condition: condition.Always},
		{From: nil, To: []string{"B"}, Condition: condition.Always},
		{From: []string{"A", "B"}, To: []string{"C"}, Condition: condition.Always},
	})
	reg.SetFlowConfig("fanin", FlowConfig{})
	return reg
}

// TestEngine_CartesianFanIn checks combineFromNodes' documented
// behavior: C must wait for at least one finished B no matter how many
// A instances have finished, and once B finishes it pairs with every A
// id finished so far — not just the one that happens to finish last.
func TestEngine_CartesianFanIn(t *testing.T) {
	ctx := context.Background()
	reg := fanInRegistry()
	driver := newFakeDriver()

	state, err := New(ctx, "run-1", "fanin", reg, nil, driver, nil, "seed-args", nil, nil)
	require.NoError(t, err)
	wait, err := state.Update(ctx)
	require.NoError(t, err)
	require.NotNil(t, wait)

	snap := state.ToSnapshot()
	aRefs := refsByName(snap.ActiveNodes, "A")
	require.Len(t, aRefs, 2, "both start edges targeting A must dispatch separate instances")
	bRef := refByName(t, snap.ActiveNodes, "B")

	// Finish one A instance only. C must not fire yet: B hasn't
	// finished, so the "B" leg of the Cartesian product is empty.
	driver.handle(aRefs[0].ID).set("success", "a0")
	state, err = New(ctx, "run-1", "fanin", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	_, err = state.Update(ctx)
	require.NoError(t, err)
	snap = state.ToSnapshot()
	require.Empty(t, refsByName(snap.ActiveNodes, "C"), "C must not fire before B has ever finished")

	// Now finish B. The only combination currently possible is the one
	// finished A id paired with B — not the still-pending second A.
	driver.handle(bRef.ID).set("success", "b0")
	state, err = New(ctx, "run-1", "fanin", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	_, err = state.Update(ctx)
	require.NoError(t, err)
	snap = state.ToSnapshot()
	cRefs := refsByName(snap.ActiveNodes, "C")
	require.Len(t, cRefs, 1, "exactly one combination (finished A x finished B) should have fired")
}
