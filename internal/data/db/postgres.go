package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/flowmesh/flowmesh/internal/domain/flowrun"
	"github.com/flowmesh/flowmesh/internal/platform/config"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

// Service owns the *gorm.DB backing the FlowRun/Event tables every
// broker driver reads and writes through flowrun.Repo. Adapted from
// the teacher's PostgresService (same DSN-assembly-plus-gorm.Open
// shape), generalized from a single hardcoded env prefix to an
// injected config.PostgresConfig so cmd/flowmesh can point it at a
// different database than the storage pool's postgresadapter.
type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewService(cfg config.PostgresConfig, logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	gdb, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
		return nil, fmt.Errorf("failed to enable uuid-ossp extension: %w", err)
	}

	return &Service{db: gdb, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

// Migrate brings the flow_run/flow_run_event tables up to date. It is
// run explicitly by `flowmesh migrate`, not on every
// connection, matching the teacher's store.Migrate-called-once-at-
// startup shape rather than auto-migrating on every request.
func (s *Service) Migrate() error {
	return s.db.AutoMigrate(&flowrun.FlowRun{}, &flowrun.Event{})
}
