package temporalqueue

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

/*
FlowWorkflow is the Temporal-backed Dispatcher: one workflow execution
per flow instance, ticking Dispatcher.Tick (via the ActivityTick
activity) until the flow instance reaches a terminal status, sleeping
between ticks for however long SystemState.Retry() said to wait.

Grounded on the teacher's internal/temporalx/jobrun/workflow.go — the
tick/sleep/continue-as-new loop is kept close to verbatim; the
"waiting_user" branch is dropped since flowmesh has no human-pause
concept, and a cancel signal replaces the job-run cancellation path.
*/
func FlowWorkflow(ctx workflow.Context, flowRunID string) error {
	if flowRunID == "" {
		return fmt.Errorf("temporalqueue: missing flow_run_id")
	}

	const (
		defaultPollInterval  = 2 * time.Second
		continueTickLimit    = 2000
		continueHistoryLimit = 15000
	)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Hour,
		HeartbeatTimeout:    30 * time.Second,
	})

	cancelCh := workflow.GetSignalChannel(ctx, SignalCancel)
	canceled := false

	tickCount := 0
	for {
		if canceled {
			return nil
		}
		tickCount++

		var out TickResult
		if err := workflow.ExecuteActivity(ctx, ActivityTick, flowRunID).Get(ctx, &out); err != nil {
			return err
		}

		if out.Terminal {
			if out.Status == "failed" {
				return fmt.Errorf("flow %s failed", flowRunID)
			}
			return nil
		}

		wait := defaultPollInterval
		if out.WaitSeconds != nil {
			wait = time.Duration(*out.WaitSeconds) * time.Second
		}
		if wait > 0 {
			sel := workflow.NewSelector(ctx)
			timer := workflow.NewTimer(ctx, wait)
			sel.AddFuture(timer, func(workflow.Future) {})
			sel.AddReceive(cancelCh, func(c workflow.ReceiveChannel, more bool) {
				var v any
				c.Receive(ctx, &v)
				canceled = true
			})
			sel.Select(ctx)
		}

		if shouldContinueAsNew(ctx, tickCount, continueTickLimit, continueHistoryLimit) {
			return workflow.NewContinueAsNewError(ctx, FlowWorkflow, flowRunID)
		}
	}
}

func shouldContinueAsNew(ctx workflow.Context, ticks, maxTicks, maxHistory int) bool {
	if maxTicks > 0 && ticks >= maxTicks {
		return true
	}
	info := workflow.GetInfo(ctx)
	if info == nil || maxHistory <= 0 {
		return false
	}
	return info.GetCurrentHistoryLength() >= maxHistory
}
