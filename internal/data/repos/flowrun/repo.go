package flowrun

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
	"github.com/flowmesh/flowmesh/internal/platform/dbctx"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

// Repo is the SQL-backed persistence boundary for FlowRun rows. It is
// used directly by the sqlqueue broker driver for claim/lease/poll,
// and by the temporalqueue driver purely for snapshot load/save (the
// lease itself is Temporal's workflow execution, not a DB row lock).
//
// Adapted from the teacher's internal/data/repos/jobs/job_run.go,
// trimmed to the methods a flow instance actually needs (no
// owner/entity scoping, which was specific to the teacher's business
// domain).
type Repo interface {
	Create(dbc dbctx.Context, run *flowrun.FlowRun) (*flowrun.FlowRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*flowrun.FlowRun, error)
	ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*flowrun.FlowRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	Heartbeat(dbc dbctx.Context, id uuid.UUID) error
	AppendEvent(dbc dbctx.Context, ev *flowrun.Event) error
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "FlowRunRepo")}
}

func (r *repo) tx(dbc dbctx.Context) *gorm.DB {
	if dbc.Tx != nil {
		return dbc.Tx
	}
	return r.db
}

func (r *repo) Create(dbc dbctx.Context, run *flowrun.FlowRun) (*flowrun.FlowRun, error) {
	if err := r.tx(dbc).WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *repo) GetByID(dbc dbctx.Context, id uuid.UUID) (*flowrun.FlowRun, error) {
	var run flowrun.FlowRun
	err := r.tx(dbc).WithContext(dbc.Ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ClaimNextRunnable picks the oldest queued/retryable/stale-running
// flow run and marks it running, all inside one SELECT ... FOR UPDATE
// SKIP LOCKED transaction so concurrent sqlqueue workers never double
// claim. Unchanged in shape from the teacher's ClaimNextRunnable.
func (r *repo) ClaimNextRunnable(dbc dbctx.Context, maxAttempts int, retryDelay time.Duration, staleRunning time.Duration) (*flowrun.FlowRun, error) {
	now := time.Now()
	retryCutoff := now.Add(-retryDelay)
	staleCutoff := now.Add(-staleRunning)

	var claimed *flowrun.FlowRun
	err := r.tx(dbc).WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		var run flowrun.FlowRun
		q := txx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where(`
        (
          (status = ? AND (next_run_at IS NULL OR next_run_at <= ?))
          OR (
            status = ?
            AND attempts < ?
            AND (last_error_at IS NULL OR last_error_at < ?)
          )
          OR (
            status = ?
            AND heartbeat_at IS NOT NULL
            AND heartbeat_at < ?
          )
        )
      `, flowrun.StatusQueued, now, flowrun.StatusFailed, maxAttempts, retryCutoff, flowrun.StatusRunning, staleCutoff).
			Order("created_at ASC")
		qErr := q.First(&run).Error
		if errors.Is(qErr, gorm.ErrRecordNotFound) {
			return nil
		}
		if qErr != nil {
			return qErr
		}

		uErr := txx.Model(&flowrun.FlowRun{}).
			Where("id = ?", run.ID).
			Updates(map[string]interface{}{
				"status":       flowrun.StatusRunning,
				"attempts":     gorm.Expr("attempts + 1"),
				"locked_at":    now,
				"heartbeat_at": now,
				"updated_at":   now,
			}).Error
		if uErr != nil {
			return uErr
		}
		claimed = &run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&flowrun.FlowRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessStatus applies updates unless the row is already
// in one of disallowedStatuses — used to avoid resurrecting a flow
// instance an operator has canceled out from under an in-flight tick.
func (r *repo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := r.tx(dbc).WithContext(dbc.Ctx).Model(&flowrun.FlowRun{}).Where("id = ?", id)
	switch len(disallowedStatuses) {
	case 0:
	case 1:
		q = q.Where("status <> ?", disallowedStatuses[0])
	default:
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) Heartbeat(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	now := time.Now()
	return r.tx(dbc).WithContext(dbc.Ctx).
		Model(&flowrun.FlowRun{}).
		Where("id = ? AND status = ?", id, flowrun.StatusRunning).
		Updates(map[string]interface{}{
			"heartbeat_at": now,
			"updated_at":   now,
		}).Error
}

func (r *repo) AppendEvent(dbc dbctx.Context, ev *flowrun.Event) error {
	return r.tx(dbc).WithContext(dbc.Ctx).Create(ev).Error
}
