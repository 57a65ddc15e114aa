package temporalqueue

// Workflow/activity/signal names registered with the Temporal worker.
// Kept as explicit constants, mirroring the teacher's
// internal/temporalx/jobrun/types.go, since Temporal matches these by
// string across process boundaries.
const (
	FlowWorkflowName = "flowmesh.FlowTick"
	ActivityTick     = "flowmesh.Tick"
	SignalCancel     = "flowmesh.cancel"
)

// TickResult is the activity-boundary summary of one Dispatcher.Tick
// call — just enough for the workflow loop to decide whether to sleep,
// continue, or return.
type TickResult struct {
	FlowRunID   string
	Status      string
	WaitSeconds *int
	Terminal    bool
}
