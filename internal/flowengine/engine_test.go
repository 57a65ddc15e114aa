package flowengine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/internal/condition"
)

func simpleRegistry() *Registry {
	reg := NewRegistry()
	reg.AddNode(Node{Name: "A", Kind: NodeTask})
	reg.AddNode(Node{Name: "B", Kind: NodeTask})
	reg.SetEdgeTable("simple", []Edge{
		{From: nil, To: []string{"A"}, Condition: condition.Always},
		{From: []string{"A"}, To: []string{"B"}, Condition: condition.Always},
	})
	reg.SetFlowConfig("simple", FlowConfig{})
	return reg
}

// TestEngine_StartFinishLifecycle drives a two-node linear flow
// (start -> A -> B) through three ticks and checks the full contract:
// retry resets to the starting backoff whenever something is
// dispatched, the auto-args rule adopts the sole starting task's
// result as node_args, and the flow terminates (nil retry) only once
// every node has finished.
func TestEngine_StartFinishLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := simpleRegistry()
	driver := newFakeDriver()

	state, err := New(ctx, "run-1", "simple", reg, nil, driver, nil, nil, nil, nil)
	require.NoError(t, err)

	wait, err := state.Update(ctx)
	require.NoError(t, err)
	require.NotNil(t, wait)
	require.Equal(t, startRetrySeconds, *wait)

	snap := state.ToSnapshot()
	require.Len(t, snap.ActiveNodes, 1)
	aRef := refByName(t, snap.ActiveNodes, "A")
	require.Len(t, snap.WaitingEdges, 1, "dispatching A must record the A->B edge as waiting")

	// Tick 2: A finishes, which should both adopt its result as
	// node_args (the auto-args rule) and fire A->B, starting B.
	driver.handle(aRef.ID).set("success", "a-result")
	state, err = New(ctx, "run-1", "simple", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	wait, err = state.Update(ctx)
	require.NoError(t, err)
	require.NotNil(t, wait)
	require.Equal(t, startRetrySeconds, *wait)
	require.Equal(t, "a-result", state.NodeArgs())

	snap = state.ToSnapshot()
	require.Len(t, snap.ActiveNodes, 1)
	bRef := refByName(t, snap.ActiveNodes, "B")
	require.ElementsMatch(t, []string{aRef.ID}, snap.FinishedNodes["A"])
	require.Len(t, snap.WaitingEdges, 1, "waiting_edges must not shrink once recorded")

	// Tick 3: B finishes. Nothing else depends on B, so the flow is
	// done and Update must report nil — no further tick required.
	driver.handle(bRef.ID).set("success", "b-result")
	state, err = New(ctx, "run-1", "simple", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
	require.NoError(t, err)
	wait, err = state.Update(ctx)
	require.NoError(t, err)
	require.Nil(t, wait, "flow with nothing left active or waiting must report done")

	final := state.ToSnapshot()
	require.Empty(t, final.ActiveNodes)
	require.ElementsMatch(t, []string{bRef.ID}, final.FinishedNodes["B"])
	require.Len(t, final.WaitingEdges, 1, "waiting_edges is additive-only for the life of the instance")
}

// TestEngine_ConfigErrors checks the two ConfigError paths a flow
// registry can hit on its very first tick: no edge table at all, and
// an edge table with no start edges.
func TestEngine_ConfigErrors(t *testing.T) {
	ctx := context.Background()
	driver := newFakeDriver()

	t.Run("unknown flow", func(t *testing.T) {
		reg := NewRegistry()
		state, err := New(ctx, "run-1", "ghost", reg, nil, driver, nil, nil, nil, nil)
		require.NoError(t, err)
		_, err = state.Update(ctx)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("no start edge", func(t *testing.T) {
		reg := NewRegistry()
		reg.SetEdgeTable("headless", []Edge{
			{From: []string{"A"}, To: []string{"B"}, Condition: condition.Always},
		})
		state, err := New(ctx, "run-1", "headless", reg, nil, driver, nil, nil, nil, nil)
		require.NoError(t, err)
		_, err = state.Update(ctx)
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})
}

// TestEngine_RetryBackoff isolates continueAndUpdateRetry's back-off
// branch: a node still active with nothing new doubles the delay
// each tick, capped at maxRetrySeconds.
func TestEngine_RetryBackoff(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	reg.AddNode(Node{Name: "slow", Kind: NodeTask})
	reg.SetEdgeTable("slowflow", []Edge{
		{From: nil, To: []string{"slow"}, Condition: condition.Always},
	})
	reg.SetFlowConfig("slowflow", FlowConfig{})

	driver := newFakeDriver()
	state, err := New(ctx, "run-1", "slowflow", reg, nil, driver, nil, nil, nil, nil)
	require.NoError(t, err)

	wait, err := state.Update(ctx)
	require.NoError(t, err)
	require.Equal(t, startRetrySeconds, *wait)
	snap := state.ToSnapshot()

	// The lone node stays pending across every following tick: retry
	// must double (2, 4, 8, ...) until it saturates at maxRetrySeconds.
	want := startRetrySeconds
	for i := 0; i < 10; i++ {
		state, err = New(ctx, "run-1", "slowflow", reg, nil, driver, nil, snap.NodeArgs, snap.Parent, snap)
		require.NoError(t, err)
		wait, err = state.Update(ctx)
		require.NoError(t, err)
		require.NotNil(t, wait)

		if want*2 > maxRetrySeconds {
			want = maxRetrySeconds
		} else {
			want = want * 2
		}
		require.Equal(t, want, *wait)
		snap = state.ToSnapshot()
	}
	require.Equal(t, maxRetrySeconds, *wait)
}
