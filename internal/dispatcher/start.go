package dispatcher

import (
	"context"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
)

// Enqueue creates a new, queued FlowRun row for flowName. It does not
// itself schedule a tick — the caller's broker driver is responsible
// for that (temporalqueue starts a workflow keyed by the new row's id;
// sqlqueue simply leaves the row for the next poll to claim).
func (d *Dispatcher) Enqueue(ctx context.Context, flowName string, nodeArgs, parent any) (*flowrun.FlowRun, error) {
	nodeArgsJSON, err := json.Marshal(nodeArgs)
	if err != nil {
		return nil, err
	}
	parentJSON, err := json.Marshal(parent)
	if err != nil {
		return nil, err
	}

	run := &flowrun.FlowRun{
		FlowName: flowName,
		Status:   flowrun.StatusQueued,
		NodeArgs: datatypes.JSON(nodeArgsJSON),
		Parent:   datatypes.JSON(parentJSON),
	}
	return d.Repo.Create(dbctx.Context{Ctx: ctx}, run)
}
