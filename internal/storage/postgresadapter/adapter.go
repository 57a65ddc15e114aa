package postgresadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/flowmesh/flowmesh/internal/platform/envutil"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

// record is the table a node result lives in: one row per
// (flow_name, task_name, task_id), which is exactly the key
// selinon/dataStorage.py's retrieve/store contract addresses by.
type record struct {
	FlowName string         `gorm:"column:flow_name;primaryKey"`
	TaskName string         `gorm:"column:task_name;primaryKey"`
	TaskID   string         `gorm:"column:task_id;primaryKey"`
	NodeArgs datatypes.JSON `gorm:"column:node_args"`
	Result   datatypes.JSON `gorm:"column:result"`
	StoredAt time.Time      `gorm:"column:stored_at"`
}

func (record) TableName() string { return "flow_storage_record" }

// Adapter is a storage.Adapter backed by Postgres via gorm, grounded
// on the teacher's internal/data/db/postgres.go connection/DSN/logger
// setup — adapted from a shared application DB handle into a
// lazily-connected, independently-configured storage backend (one
// flow's declared storages may point at entirely different databases).
type Adapter struct {
	log *logger.Logger

	dsn string
	db  *gorm.DB

	connected atomic.Bool
}

func New(log *logger.Logger, dsn string) *Adapter {
	return &Adapter{log: log.With("component", "PostgresStorageAdapter"), dsn: dsn}
}

// NewFromEnv builds the DSN the same way PostgresService does, reading
// POSTGRES_{HOST,PORT,USER,PASSWORD,NAME} with an optional prefix so
// multiple declared storages can each point at distinct databases.
func NewFromEnv(log *logger.Logger, envPrefix string) *Adapter {
	host := envutil.String(envPrefix+"POSTGRES_HOST", "localhost")
	port := envutil.String(envPrefix+"POSTGRES_PORT", "5432")
	user := envutil.String(envPrefix+"POSTGRES_USER", "postgres")
	password := envutil.String(envPrefix+"POSTGRES_PASSWORD", "")
	name := envutil.String(envPrefix+"POSTGRES_NAME", "flowmesh")

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, name)
	return New(log, dsn)
}

func (a *Adapter) Connected() bool { return a.connected.Load() }

func (a *Adapter) Connect(ctx context.Context) error {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(a.dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return fmt.Errorf("postgresadapter: connect: %w", err)
	}
	if err := db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("postgresadapter: migrate: %w", err)
	}

	a.db = db
	a.connected.Store(true)
	return nil
}

func (a *Adapter) Disconnect(ctx context.Context) error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	a.connected.Store(false)
	return sqlDB.Close()
}

func (a *Adapter) Retrieve(ctx context.Context, flowName, taskName, taskID string) (any, error) {
	var rec record
	err := a.db.WithContext(ctx).
		Where("flow_name = ? AND task_name = ? AND task_id = ?", flowName, taskName, taskID).
		First(&rec).Error
	if err != nil {
		return nil, fmt.Errorf("postgresadapter: retrieve %s/%s/%s: %w", flowName, taskName, taskID, err)
	}
	var out any
	if err := json.Unmarshal(rec.Result, &out); err != nil {
		return nil, fmt.Errorf("postgresadapter: decode result: %w", err)
	}
	return out, nil
}

func (a *Adapter) Store(ctx context.Context, flowName, taskName, taskID string, nodeArgs, result any) (string, error) {
	nodeArgsJSON, err := json.Marshal(nodeArgs)
	if err != nil {
		return "", fmt.Errorf("postgresadapter: encode node_args: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("postgresadapter: encode result: %w", err)
	}

	rec := record{
		FlowName: flowName,
		TaskName: taskName,
		TaskID:   taskID,
		NodeArgs: datatypes.JSON(nodeArgsJSON),
		Result:   datatypes.JSON(resultJSON),
		StoredAt: time.Now().UTC(),
	}

	err = a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "flow_name"}, {Name: "task_name"}, {Name: "task_id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return "", fmt.Errorf("postgresadapter: store %s/%s/%s: %w", flowName, taskName, taskID, err)
	}
	return taskID, nil
}
