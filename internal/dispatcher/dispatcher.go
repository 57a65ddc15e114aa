package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
	flowrunrepo "github.com/flowmesh/flowmesh/internal/data/repos/flowrun"
	"github.com/flowmesh/flowmesh/internal/flowengine"
	"github.com/flowmesh/flowmesh/internal/metrics"
	"github.com/flowmesh/flowmesh/internal/platform/apierr"
	"github.com/flowmesh/flowmesh/internal/platform/ctxutil"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
	"github.com/flowmesh/flowmesh/internal/storage"
	"github.com/flowmesh/flowmesh/internal/tracing"
)

/*
Dispatcher is the broker-agnostic core of the re-enqueuing tick loop:
load one flow instance's row, run exactly one flowengine.Update, and
persist the result. Both broker drivers (temporalqueue's workflow/
activity pair and sqlqueue's poll loop) wrap this same Tick — neither
reimplements the load/update/save sequence.

Grounded on the teacher's internal/temporalx/jobrun/activities.go
Activities.Tick (status short-circuit, heartbeat-wrapped handler call,
reload-after-mutation) and internal/jobs/worker/worker.go's runLoop
(claim, dispatch, persist).
*/
type Dispatcher struct {
	Log      *logger.Logger
	Repo     flowrunrepo.Repo
	Registry *flowengine.Registry
	Pool     *storage.Pool
	Driver   broker.Driver
	Tracer   tracing.Tracer

	// Metrics is optional: when set, Tick updates the active-nodes
	// gauge and, when a next tick is due, observes its wait in the
	// retry-seconds histogram after every successful Update (occurrence-based metrics
	// like finished/failed/fallback counts ride the Tracer instead,
	// via metrics.Tracer).
	Metrics *metrics.Exporter
}

// TickOutcome is what the caller needs to decide how to schedule the
// next tick: WaitSeconds mirrors SystemState.Retry() (nil means
// "nothing left to do"), Terminal means the row is already in a
// status that will never tick again.
type TickOutcome struct {
	Status      string
	WaitSeconds *int
	Terminal    bool
}

func (d *Dispatcher) Tick(ctx context.Context, flowRunID uuid.UUID) (TickOutcome, error) {
	dbc := dbctx.Context{Ctx: ctx}

	run, err := d.Repo.GetByID(dbc, flowRunID)
	if err != nil {
		return TickOutcome{}, err
	}
	if run == nil {
		return TickOutcome{}, fmt.Errorf("dispatcher: flow run %s not found", flowRunID)
	}

	switch run.Status {
	case flowrun.StatusSucceeded, flowrun.StatusFailed, flowrun.StatusCanceled:
		return TickOutcome{Status: run.Status, Terminal: true}, nil
	}

	var snap flowengine.Snapshot
	if len(run.Snapshot) > 0 {
		if err := json.Unmarshal(run.Snapshot, &snap); err != nil {
			return TickOutcome{}, fmt.Errorf("dispatcher: decode snapshot: %w", err)
		}
	}
	var nodeArgs any
	if len(run.NodeArgs) > 0 {
		_ = json.Unmarshal(run.NodeArgs, &nodeArgs)
	}
	var parent any
	if len(run.Parent) > 0 {
		_ = json.Unmarshal(run.Parent, &parent)
	}

	// Every trace event this tick emits (spans, trace-bus messages)
	// carries the flow run id for cross-system correlation, the same
	// role the teacher's ctxutil.TraceData played for HTTP request
	// tracing.
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{TraceID: run.ID.String()})

	now := time.Now().UTC()
	_, _ = d.Repo.UpdateFieldsUnlessStatus(dbc, run.ID, []string{flowrun.StatusCanceled}, map[string]interface{}{
		"status":       flowrun.StatusRunning,
		"heartbeat_at": now,
	})

	state, err := flowengine.New(ctx, run.ID.String(), run.FlowName, d.Registry, d.Pool, d.Driver, d.Tracer, nodeArgs, parent, &snap)
	if err != nil {
		return TickOutcome{}, err
	}

	wait, updateErr := state.Update(ctx)

	var flowErr *flowengine.FlowError
	var cfgErr *flowengine.ConfigError
	switch {
	case errors.As(updateErr, &flowErr):
		_, err := d.Repo.UpdateFieldsUnlessStatus(dbc, run.ID, []string{flowrun.StatusCanceled}, map[string]interface{}{
			"status": flowrun.StatusFailed,
			"error":  flowErr.Error(),
		})
		if err != nil {
			return TickOutcome{}, err
		}
		return TickOutcome{Status: flowrun.StatusFailed, Terminal: true}, nil

	case errors.As(updateErr, &cfgErr):
		// Configuration mistakes are a class of their own, surfaced
		// through apierr.Error so callers embedding flowmesh behind an
		// API boundary get a stable Code ("configuration") instead of
		// having to pattern-match the free-form message.
		apiErr := apierr.New(500, "configuration", cfgErr)
		_, err := d.Repo.UpdateFieldsUnlessStatus(dbc, run.ID, []string{flowrun.StatusCanceled}, map[string]interface{}{
			"status": flowrun.StatusFailed,
			"error":  apiErr.Error(),
		})
		if err != nil {
			return TickOutcome{}, err
		}
		return TickOutcome{Status: flowrun.StatusFailed, Terminal: true}, nil

	case updateErr != nil:
		// Transient error: do not persist. The snapshot on disk is
		// unchanged, so the broker's redelivery will retry this tick
		// from the same starting point.
		return TickOutcome{}, updateErr
	}

	newSnap := state.ToSnapshot()
	if d.Metrics != nil {
		d.Metrics.ActiveNodes.WithLabelValues(run.FlowName).Set(float64(len(newSnap.ActiveNodes)))
		if wait != nil {
			d.Metrics.RetrySeconds.WithLabelValues(run.FlowName).Observe(float64(*wait))
		}
	}
	snapJSON, err := json.Marshal(newSnap)
	if err != nil {
		return TickOutcome{}, fmt.Errorf("dispatcher: encode snapshot: %w", err)
	}
	nodeArgsJSON, _ := json.Marshal(newSnap.NodeArgs)

	status := flowrun.StatusRunning
	var nextRunAt *time.Time
	if wait == nil {
		status = flowrun.StatusSucceeded
	} else {
		t := time.Now().UTC().Add(time.Duration(*wait) * time.Second)
		nextRunAt = &t
	}

	updates := map[string]interface{}{
		"status":     status,
		"snapshot":   datatypes.JSON(snapJSON),
		"node_args":  datatypes.JSON(nodeArgsJSON),
		"next_run_at": nextRunAt,
	}
	if _, err := d.Repo.UpdateFieldsUnlessStatus(dbc, run.ID, []string{flowrun.StatusCanceled}, updates); err != nil {
		return TickOutcome{}, err
	}

	return TickOutcome{Status: status, WaitSeconds: wait, Terminal: status == flowrun.StatusSucceeded}, nil
}
