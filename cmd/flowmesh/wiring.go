package main

import (
	"fmt"

	"go.opentelemetry.io/otel"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/flowmesh/flowmesh/internal/broker"
	"github.com/flowmesh/flowmesh/internal/broker/sqlqueue"
	"github.com/flowmesh/flowmesh/internal/broker/temporalqueue"
	"github.com/flowmesh/flowmesh/internal/data/db"
	flowrunrepo "github.com/flowmesh/flowmesh/internal/data/repos/flowrun"
	"github.com/flowmesh/flowmesh/internal/dispatcher"
	"github.com/flowmesh/flowmesh/internal/metrics"
	"github.com/flowmesh/flowmesh/internal/platform/config"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
	"github.com/flowmesh/flowmesh/internal/storage"
	"github.com/flowmesh/flowmesh/internal/storage/postgresadapter"
	"github.com/flowmesh/flowmesh/internal/storage/redisadapter"
	"github.com/flowmesh/flowmesh/internal/temporalx"
	"github.com/flowmesh/flowmesh/internal/tracing"
	"github.com/flowmesh/flowmesh/internal/tracing/bus"
)

// deps bundles everything run/serve share: a
// dispatcher wired to the configured broker, plus the pieces needed
// to construct that broker's worker/runner.
type deps struct {
	Log        *logger.Logger
	Cfg        config.Config
	DB         *db.Service
	Dispatcher *dispatcher.Dispatcher
	Metrics    *metrics.Exporter

	SQLRegistry      *sqlqueue.Registry
	TemporalRegistry *temporalqueue.Registry
	TemporalClient   temporalsdkclient.Client
}

func newDBService(cfg config.Config, log *logger.Logger) (*db.Service, error) {
	dbsvc, err := db.NewService(cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("connect flow_run store: %w", err)
	}
	return dbsvc, nil
}

func buildDeps(cfg config.Config) (*deps, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	dbsvc, err := newDBService(cfg, log)
	if err != nil {
		return nil, err
	}
	repo := flowrunrepo.NewRepo(dbsvc.DB(), log)

	pool := storage.NewPool(map[string]storage.Adapter{
		"postgres": postgresadapter.New(log, cfg.Postgres.DSN()),
		"redis":    redisadapter.New(log, cfg.Redis.Addr, cfg.Redis.TTL),
	})

	exporter := metrics.NewExporter()
	traceBus, err := bus.NewTracer(log, cfg.Redis.Addr, "flowmesh.trace")
	if err != nil {
		return nil, fmt.Errorf("connect trace bus: %w", err)
	}
	tr := tracing.Multi{
		tracing.NewOTelTracer(otel.Tracer("flowmesh")),
		traceBus,
		metrics.NewTracer(exporter),
	}

	d := &dispatcher.Dispatcher{
		Log:     log,
		Repo:    repo,
		Pool:    pool,
		Tracer:  tr,
		Metrics: exporter,
	}

	dp := &deps{Log: log, Cfg: cfg, DB: dbsvc, Dispatcher: d, Metrics: exporter}

	switch cfg.Broker {
	case config.BrokerSQL:
		dp.SQLRegistry = sqlqueue.NewRegistry()
		d.Driver = sqlqueue.NewDriver(d, dp.SQLRegistry, log)

	case config.BrokerTemporal:
		tc, err := temporalx.NewClient(log)
		if err != nil {
			return nil, fmt.Errorf("connect temporal: %w", err)
		}
		if tc == nil {
			return nil, fmt.Errorf("broker=temporal requires the TEMPORAL_ADDRESS environment variable")
		}
		dp.TemporalClient = tc
		dp.TemporalRegistry = temporalqueue.NewRegistry()
		d.Driver = &temporalqueue.Driver{
			Client:     tc,
			TaskQueue:  cfg.Temporal.TaskQueue,
			Dispatcher: d,
		}

	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Broker)
	}

	return dp, nil
}

var _ broker.Driver = (*sqlqueue.Driver)(nil)
