// Package config loads the hostselect CLI configuration via Viper.
// Values come from an optional YAML file, overridden by HOSTSELECT_* environment
// variables (nested keys joined by underscores, e.g. HOSTSELECT_DATABASE_DSN).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "HOSTSELECT"

// Registry backends.
const (
	BackendSQL    = "sql"
	BackendPgx    = "pgx"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// DatabaseCfg configures the SQL registry (sql and pgx backends).
type DatabaseCfg struct {
	Dialect       string `mapstructure:"dialect"` // postgres | mysql | sqlite
	DSN           string `mapstructure:"dsn"`
	ServicesTable string `mapstructure:"services_table"`
	CursorsTable  string `mapstructure:"cursors_table"`
}

// RedisCfg configures the Redis registry.
type RedisCfg struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// SelectionCfg tunes the resolver and the rotation assigner.
type SelectionCfg struct {
	StaleAfter   time.Duration `mapstructure:"stale_after"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryDelay   time.Duration `mapstructure:"retry_delay"`
	ActivePolicy string        `mapstructure:"active_policy"` // fail-fast | poll
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollTimeout  time.Duration `mapstructure:"poll_timeout"`
}

// AgentCfg configures the worker-side agent.
type AgentCfg struct {
	Topic                  string        `mapstructure:"topic"`
	Host                   string        `mapstructure:"host"`
	HeartbeatInterval      time.Duration `mapstructure:"heartbeat_interval"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	DeregisterOnExit       bool          `mapstructure:"deregister_on_exit"`
}

// MetricsCfg controls the Prometheus endpoint.
type MetricsCfg struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// LogCfg controls structured logging.
type LogCfg struct {
	Level  string `mapstructure:"level"`  // debug | info | warn | error
	Format string `mapstructure:"format"` // json | text
}

// Config is the top-level CLI configuration.
type Config struct {
	Backend   string       `mapstructure:"backend"` // sql | pgx | redis | memory
	Database  DatabaseCfg  `mapstructure:"database"`
	Redis     RedisCfg     `mapstructure:"redis"`
	Selection SelectionCfg `mapstructure:"selection"`
	Agent     AgentCfg     `mapstructure:"agent"`
	Metrics   MetricsCfg   `mapstructure:"metrics"`
	Log       LogCfg       `mapstructure:"log"`
	Tracing   bool         `mapstructure:"tracing"`
}

// Load reads the YAML file at path, if any, and applies environment overrides.
// It returns the parsed Config and the Viper instance (needed for Watch).
func Load(path string) (Config, *viper.Viper, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, nil, fmt.Errorf("config: reading %q: %w", path, err)
		}
	}

	cfg, err := unmarshal(v)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, v, nil
}

// Watch registers an onChange callback that fires whenever the config file is
// saved. Invalid reloads are logged and skipped, so the previous config stays active.
func Watch(v *viper.Viper, onChange func(Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := unmarshal(v)
		if err != nil {
			slog.Error("config reload failed", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
}

// Validate checks the values the CLI cannot default.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendSQL, BackendPgx:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for the sql and pgx backends"))
		}
		if c.Backend == BackendPgx && c.Database.Dialect != "postgres" {
			errs = append(errs, errors.New("the pgx backend only supports the postgres dialect"))
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis backend"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q: expected sql, pgx, redis or memory", c.Backend))
	}

	if c.Selection.MaxAttempts < 0 {
		errs = append(errs, errors.New("selection.max_attempts must not be negative"))
	}
	if c.Selection.StaleAfter < 0 {
		errs = append(errs, errors.New("selection.stale_after must not be negative"))
	}
	if c.Agent.HeartbeatInterval < 0 {
		errs = append(errs, errors.New("agent.heartbeat_interval must not be negative"))
	}

	return errors.Join(errs...)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key gets a default so environment overrides reach Unmarshal.
	v.SetDefault("backend", BackendSQL)
	v.SetDefault("database.dialect", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.services_table", "hostselect_services")
	v.SetDefault("database.cursors_table", "hostselect_rotation_cursors")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "hostselect:")
	v.SetDefault("selection.stale_after", "60s")
	v.SetDefault("selection.max_attempts", 10)
	v.SetDefault("selection.retry_delay", "0s")
	v.SetDefault("selection.active_policy", "fail-fast")
	v.SetDefault("selection.poll_interval", "1s")
	v.SetDefault("selection.poll_timeout", "30s")
	v.SetDefault("agent.topic", "")
	v.SetDefault("agent.host", "")
	v.SetDefault("agent.heartbeat_interval", "10s")
	v.SetDefault("agent.max_consecutive_failures", 3)
	v.SetDefault("agent.deregister_on_exit", false)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen_addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing", false)

	return v
}

func unmarshal(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg, nil
}
