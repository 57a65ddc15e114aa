// Command flowmesh is the operator entrypoint for the dataflow
// orchestrator: compiling flow documents, enqueueing and inspecting
// flow instances, and running the dispatcher against whichever broker
// a deployment has chosen. Grounded on 88lin-divinesense's
// cmd/divinesense/main.go (Cobra root command, Viper-bound persistent
// flags, .env loading for local runs).
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowmesh/flowmesh/internal/platform/config"
	"github.com/flowmesh/flowmesh/internal/platform/logger"
)

var v = viper.New()

var rootCmd = &cobra.Command{
	Use:   "flowmesh",
	Short: "Compile and run flowmesh dataflow orchestrations.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "path to a YAML config file overriding defaults/env")
	flags.String("log-mode", "dev", `log mode, "dev" or "prod"`)
	flags.String("broker", "sql", `broker driver, "sql" or "temporal"`)
	flags.String("postgres-host", "localhost", "Postgres host for the flow_run store")
	flags.String("postgres-port", "5432", "Postgres port for the flow_run store")
	flags.String("postgres-user", "postgres", "Postgres user for the flow_run store")
	flags.String("postgres-password", "", "Postgres password for the flow_run store")
	flags.String("postgres-name", "flowmesh", "Postgres database name for the flow_run store")
	flags.String("redis-addr", "localhost:6379", "Redis address for the trace bus and redis storage adapter")
	flags.String("temporal-address", "", "Temporal frontend address (stored in config; the Temporal client reads TEMPORAL_ADDRESS instead)")
	flags.String("temporal-namespace", "flowmesh", "Temporal namespace (stored in config; the Temporal client reads TEMPORAL_NAMESPACE instead)")
	flags.String("temporal-task-queue", "flowmesh", "Temporal task queue")
	flags.String("metrics-addr", ":9090", "address the Prometheus /metrics endpoint listens on")

	for _, name := range []string{
		"config", "log-mode", "broker",
		"postgres-host", "postgres-port", "postgres-user", "postgres-password", "postgres-name",
		"redis-addr",
		"temporal-address", "temporal-namespace", "temporal-task-queue",
		"metrics-addr",
	} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(compileCmd, runCmd, inspectCmd, serveCmd, migrateCmd)
}

func loadConfig() (config.Config, error) {
	return config.Load(v)
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(cfg.LogMode)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
