package flowrun

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
	"github.com/flowmesh/flowmesh/internal/data/repos/testutil"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
)

func TestRepo_CreateGetUpdateHeartbeat(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRepo(db, testutil.Logger(t))

	run := &flowrun.FlowRun{
		ID:       uuid.New(),
		FlowName: "onboarding",
		Status:   flowrun.StatusQueued,
		NodeArgs: datatypes.JSON([]byte(`{"user_id":"u1"}`)),
	}
	created, err := repo.Create(dbc, run)
	require.NoError(t, err)
	require.Equal(t, run.ID, created.ID)

	fetched, err := repo.GetByID(dbc, run.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, flowrun.StatusQueued, fetched.Status)

	missing, err := repo.GetByID(dbc, uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, repo.UpdateFields(dbc, run.ID, map[string]interface{}{
		"status": flowrun.StatusRunning,
	}))
	fetched, err = repo.GetByID(dbc, run.ID)
	require.NoError(t, err)
	require.Equal(t, flowrun.StatusRunning, fetched.Status)

	require.NoError(t, repo.Heartbeat(dbc, run.ID))
	fetched, err = repo.GetByID(dbc, run.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.HeartbeatAt)

	// A canceled row must not be resurrected by a late tick's update.
	require.NoError(t, repo.UpdateFields(dbc, run.ID, map[string]interface{}{
		"status": flowrun.StatusCanceled,
	}))
	applied, err := repo.UpdateFieldsUnlessStatus(dbc, run.ID, []string{flowrun.StatusCanceled}, map[string]interface{}{
		"status": flowrun.StatusRunning,
	})
	require.NoError(t, err)
	require.False(t, applied)
	fetched, err = repo.GetByID(dbc, run.ID)
	require.NoError(t, err)
	require.Equal(t, flowrun.StatusCanceled, fetched.Status)
}

// TestRepo_ClaimNextRunnable checks the three runnable conditions
// (freshly queued, retry-eligible failure, stale running lease) are
// all claimed in created_at order, and that an exhausted set returns
// nil rather than an error.
func TestRepo_ClaimNextRunnable(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRepo(db, testutil.Logger(t))

	now := time.Now().UTC()
	queued := &flowrun.FlowRun{ID: uuid.New(), FlowName: "f", Status: flowrun.StatusQueued, CreatedAt: now.Add(-3 * time.Hour)}
	lastErr := now.Add(-2 * time.Hour)
	failed := &flowrun.FlowRun{ID: uuid.New(), FlowName: "f", Status: flowrun.StatusFailed, Attempts: 0, LastErrorAt: &lastErr, CreatedAt: now.Add(-2 * time.Hour)}
	staleHB := now.Add(-10 * time.Hour)
	staleRunning := &flowrun.FlowRun{ID: uuid.New(), FlowName: "f", Status: flowrun.StatusRunning, HeartbeatAt: &staleHB, CreatedAt: now.Add(-1 * time.Hour)}

	for _, r := range []*flowrun.FlowRun{queued, failed, staleRunning} {
		_, err := repo.Create(dbc, r)
		require.NoError(t, err)
	}

	claim1, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, claim1)
	require.Equal(t, queued.ID, claim1.ID)

	claim2, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, claim2)
	require.Equal(t, failed.ID, claim2.ID)

	claim3, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, claim3)
	require.Equal(t, staleRunning.ID, claim3.ID)

	claim4, err := repo.ClaimNextRunnable(dbc, 3, time.Hour, time.Hour)
	require.NoError(t, err)
	require.Nil(t, claim4)
}

func TestRepo_AppendEvent(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewRepo(db, testutil.Logger(t))

	run := &flowrun.FlowRun{ID: uuid.New(), FlowName: "f", Status: flowrun.StatusQueued}
	_, err := repo.Create(dbc, run)
	require.NoError(t, err)

	ev := &flowrun.Event{
		ID:        uuid.New(),
		FlowRunID: run.ID,
		FlowName:  run.FlowName,
		Kind:      string(flowrun.EventNodeSuccessful),
		Data:      datatypes.JSON([]byte(`{"node_name":"fetch"}`)),
	}
	require.NoError(t, repo.AppendEvent(dbc, ev))
}
