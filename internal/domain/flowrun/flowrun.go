package flowrun

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Status values a FlowRun row can hold. Mirrors the teacher's JobRun
// status vocabulary, minus "waiting_user" (no human-pause concept in
// flowmesh) and plus "canceled" kept for operator-driven aborts.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCanceled  = "canceled"
)

// FlowRun is the persisted row backing one flow instance: the engine's
// Snapshot, plus the operational metadata (status/attempts/lease
// fields) every broker driver needs regardless of which one is active.
//
// Adapted from the teacher's internal/domain/jobs/job_run.go — field
// set trimmed to what a flow instance actually needs (no owner/entity
// columns, which were specific to the teacher's business domain) and
// Result renamed to Snapshot to match flowengine.Snapshot's role.
type FlowRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	FlowName    string         `gorm:"column:flow_name;not null;index" json:"flow_name"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;index" json:"stage,omitempty"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at;index" json:"last_error_at,omitempty"`
	NextRunAt   *time.Time     `gorm:"column:next_run_at;index" json:"next_run_at,omitempty"`
	NodeArgs    datatypes.JSON `gorm:"column:node_args;type:jsonb" json:"node_args,omitempty"`
	Parent      datatypes.JSON `gorm:"column:parent;type:jsonb" json:"parent,omitempty"`
	Snapshot    datatypes.JSON `gorm:"column:snapshot;type:jsonb" json:"snapshot,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;default:now();index" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (FlowRun) TableName() string { return "flow_run" }
