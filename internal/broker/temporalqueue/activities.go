package temporalqueue

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/internal/dispatcher"
)

// TickActivities wraps a Dispatcher so FlowWorkflow can call
// Dispatcher.Tick across the activity boundary (all DB/broker I/O
// belongs in activities, never directly in workflow code, per
// Temporal's determinism rules — grounded on the teacher's
// internal/temporalx/jobrun/activities.go Activities.Tick).
type TickActivities struct {
	Dispatcher *dispatcher.Dispatcher
}

func (a *TickActivities) Tick(ctx context.Context, flowRunID string) (TickResult, error) {
	id, err := uuid.Parse(flowRunID)
	if err != nil {
		return TickResult{}, fmt.Errorf("temporalqueue: invalid flow_run_id %q: %w", flowRunID, err)
	}

	outcome, err := a.Dispatcher.Tick(ctx, id)
	if err != nil {
		return TickResult{}, err
	}

	return TickResult{
		FlowRunID:   flowRunID,
		Status:      outcome.Status,
		WaitSeconds: outcome.WaitSeconds,
		Terminal:    outcome.Terminal,
	}, nil
}
