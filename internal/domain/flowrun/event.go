package flowrun

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EventKind is the persisted counterpart of tracing.EventKind. Rows are
// written through flowrun Repo.AppendEvent; none of the engine's
// tracers call it, so trace events are not appended here automatically.
type EventKind string

const (
	EventFlowStart       EventKind = "flow_start"
	EventTaskSchedule    EventKind = "task_schedule"
	EventSubflowSchedule EventKind = "subflow_schedule"
	EventNodeSuccessful  EventKind = "node_successful"
	EventNodeFailure     EventKind = "node_failure"
	EventFallbackStart   EventKind = "fallback_start"
)

// Event is an append-only ledger row for one flow instance's timeline.
// Adapted from the teacher's internal/domain/jobs/job_run_event.go.
type Event struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowRunID uuid.UUID      `gorm:"type:uuid;not null;index" json:"flow_run_id"`
	FlowName  string         `gorm:"column:flow_name;not null;index" json:"flow_name"`
	Kind      string         `gorm:"column:kind;not null;index" json:"kind"`
	Data      datatypes.JSON `gorm:"type:jsonb;column:data" json:"data,omitempty"`
	CreatedAt time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Event) TableName() string { return "flow_run_event" }
