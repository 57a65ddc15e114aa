package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/flowmesh/flowmesh/internal/broker/sqlqueue"
	"github.com/flowmesh/flowmesh/internal/broker/temporalqueue"
	"github.com/flowmesh/flowmesh/internal/platform/config"
)

var serveFlowsPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Compile a flow catalog and run the dispatcher against the configured broker.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveFlowsPath == "" {
			return fmt.Errorf("serve requires --flows <file-or-dir.yaml>")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dp, err := buildDeps(cfg)
		if err != nil {
			return err
		}

		reg, err := compileRegistry(serveFlowsPath)
		if err != nil {
			return err
		}
		dp.Dispatcher.Registry = reg
		dp.Log.Info("compiled flow catalog", "path", serveFlowsPath, "flows", reg.FlowNames())

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: dp.Metrics.Handler()}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				dp.Log.Warn("metrics server stopped", "error", err)
			}
		}()

		switch cfg.Broker {
		case config.BrokerSQL:
			worker := sqlqueue.NewWorker(dp.Log, dp.Dispatcher)
			worker.Start(ctx)

		case config.BrokerTemporal:
			runner, err := temporalqueue.NewRunner(dp.Log, dp.TemporalClient, cfg.Temporal.TaskQueue, dp.Dispatcher, dp.TemporalRegistry)
			if err != nil {
				return fmt.Errorf("init temporal worker: %w", err)
			}
			if err := runner.Start(ctx); err != nil {
				return fmt.Errorf("start temporal worker: %w", err)
			}
		}

		dp.Log.Info("flowmesh serving", "broker", cfg.Broker, "metrics_addr", cfg.MetricsAddr)

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		dp.Log.Info("shutting down")
		cancel()
		_ = metricsSrv.Close()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveFlowsPath, "flows", "", "path to a flow document or a directory of them")
}
