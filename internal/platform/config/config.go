// Package config aggregates flowmesh's process-level settings into one
// struct, loaded through Viper the way 88lin-divinesense's
// cmd/divinesense/main.go binds flags and environment variables onto a
// single profile before anything else starts.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BrokerKind selects which broker.Driver implementation cmd/flowmesh
// wires up: "temporal" (internal/broker/temporalqueue) or "sql"
// (internal/broker/sqlqueue, the Postgres poll-and-claim driver).
type BrokerKind string

const (
	BrokerTemporal BrokerKind = "temporal"
	BrokerSQL      BrokerKind = "sql"
)

type Config struct {
	LogMode string

	Postgres PostgresConfig
	Redis    RedisConfig
	Temporal TemporalConfig

	Broker BrokerKind

	MetricsAddr string

	HeartbeatStaleAfter time.Duration
	TickPollInterval    time.Duration
}

type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Name,
	)
}

type RedisConfig struct {
	Addr string
	TTL  time.Duration
}

type TemporalConfig struct {
	Address   string
	Namespace string
	TaskQueue string
}

// Load binds flowmesh's defaults, environment variables (FLOWMESH_*),
// and an optional config file, then decodes them into a Config.
// Flags are bound by the caller (cmd/flowmesh) via v.BindPFlag before
// Load runs, matching divinesense's BindPFlag-then-viper.Get pattern.
func Load(v *viper.Viper) (Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("flowmesh")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", cfgFile, err)
		}
	}

	cfg := Config{
		LogMode: v.GetString("log-mode"),
		Postgres: PostgresConfig{
			Host:     v.GetString("postgres-host"),
			Port:     v.GetString("postgres-port"),
			User:     v.GetString("postgres-user"),
			Password: v.GetString("postgres-password"),
			Name:     v.GetString("postgres-name"),
		},
		Redis: RedisConfig{
			Addr: v.GetString("redis-addr"),
			TTL:  v.GetDuration("redis-ttl"),
		},
		Temporal: TemporalConfig{
			Address:   v.GetString("temporal-address"),
			Namespace: v.GetString("temporal-namespace"),
			TaskQueue: v.GetString("temporal-task-queue"),
		},
		Broker:              BrokerKind(v.GetString("broker")),
		MetricsAddr:         v.GetString("metrics-addr"),
		HeartbeatStaleAfter: v.GetDuration("heartbeat-stale-after"),
		TickPollInterval:    v.GetDuration("tick-poll-interval"),
	}

	switch cfg.Broker {
	case BrokerTemporal, BrokerSQL:
	default:
		return Config{}, fmt.Errorf("config: unknown broker kind %q (want %q or %q)", cfg.Broker, BrokerTemporal, BrokerSQL)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-mode", "dev")

	v.SetDefault("postgres-host", "localhost")
	v.SetDefault("postgres-port", "5432")
	v.SetDefault("postgres-user", "postgres")
	v.SetDefault("postgres-password", "")
	v.SetDefault("postgres-name", "flowmesh")

	v.SetDefault("redis-addr", "localhost:6379")
	v.SetDefault("redis-ttl", 0)

	v.SetDefault("temporal-address", "")
	v.SetDefault("temporal-namespace", "flowmesh")
	v.SetDefault("temporal-task-queue", "flowmesh")

	v.SetDefault("broker", string(BrokerSQL))
	v.SetDefault("metrics-addr", ":9090")

	v.SetDefault("heartbeat-stale-after", 60*time.Second)
	v.SetDefault("tick-poll-interval", 1*time.Second)
}
