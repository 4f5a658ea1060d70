// Package hostselect is the high-level entry point for picking service hosts.
//
// It wires a registry store, a liveness checker, the active host resolver and the
// rotation assigner behind one Selector configured with functional options.
package hostselect

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	rootpkg "github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/liveness"
	"github.com/getpup/pupsourcing-hostselect/resolver"
	"github.com/getpup/pupsourcing-hostselect/rotation"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
	"github.com/getpup/pupsourcing-hostselect/tracing"
	"github.com/getpup/pupsourcing/es"
	"go.opentelemetry.io/otel/trace"
)

// Topic identifies a pool of services.
type Topic = rootpkg.Topic

// ServiceRecord represents one registered worker instance.
type ServiceRecord = rootpkg.ServiceRecord

// RotationCursor is the persisted round-robin position for a topic.
type RotationCursor = rootpkg.RotationCursor

// Option configures a Selector.
type Option func(*config)

type config struct {
	db             *sql.DB
	dialect        sqlstore.Dialect
	tableConfig    sqlstore.TableConfig
	registry       store.Registry
	checker        liveness.Checker
	staleAfter     time.Duration
	maxAttempts    int
	retryDelay     time.Duration
	policy         resolver.Policy
	pollInterval   time.Duration
	pollTimeout    time.Duration
	logger         es.Logger
	metricsEnabled *bool
	tracerProvider trace.TracerProvider
}

// Selector answers "which host is active" and "which host is next" for any topic.
type Selector struct {
	assigner *rotation.Assigner
	finder   tracing.ActiveHostFinder
	rotator  tracing.HostRotator
}

// New creates a Selector with the given options.
//
// Required options (one of):
//   - WithDatabase: SQL database holding the registry tables
//   - WithStore: any store.Registry implementation
//
// Optional options:
//   - WithStaleThreshold: heartbeat age after which a host is dead (default: 60s)
//   - WithLiveness: custom liveness checker (overrides WithStaleThreshold)
//   - WithMaxAttempts: rotation attempt budget (default: 10)
//   - WithRetryDelay: pause between rotation attempts (default: 0)
//   - WithActivePolicy: fail-fast or poll (default: fail-fast)
//   - WithPollInterval / WithPollTimeout: poll pacing (defaults: 1s / 30s)
//   - WithLogger: custom logger (default: none)
//   - WithMetricsEnabled: enable/disable Prometheus metrics (default: true)
//   - WithTableNames: custom table names for WithDatabase
//   - WithTracerProvider: OpenTelemetry provider (default: global)
//
// Example:
//
//	sel, err := hostselect.New(
//	    hostselect.WithDatabase(db, sqlstore.Postgres),
//	    hostselect.WithActivePolicy(resolver.PolicyPoll),
//	)
//
// Returns an error if a required option is missing or a policy is unknown.
func New(opts ...Option) (*Selector, error) {
	cfg := &config{
		dialect:      sqlstore.Postgres,
		tableConfig:  sqlstore.DefaultTableConfig(),
		staleAfter:   liveness.DefaultStaleAfter,
		maxAttempts:  rotation.DefaultMaxAttempts,
		policy:       resolver.PolicyFailFast,
		pollInterval: 1 * time.Second,
		pollTimeout:  30 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.registry == nil {
		if cfg.db == nil {
			return nil, fmt.Errorf("registry is required: use WithDatabase or WithStore option")
		}
		cfg.registry = sqlstore.NewWithConfig(cfg.db, cfg.dialect, cfg.tableConfig)
	}

	if cfg.checker == nil {
		cfg.checker = liveness.NewHeartbeat(cfg.staleAfter)
	}

	metricsEnabled := true
	if cfg.metricsEnabled != nil {
		metricsEnabled = *cfg.metricsEnabled
	}

	single := resolver.New(resolver.Config{
		Registry:       cfg.registry,
		Liveness:       cfg.checker,
		Logger:         cfg.logger,
		MetricsEnabled: metricsEnabled,
	})

	finder, err := resolver.NewFinder(cfg.policy, single, resolver.PollConfig{
		Interval: cfg.pollInterval,
		Timeout:  cfg.pollTimeout,
		Logger:   cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	assigner := rotation.New(rotation.Config{
		Registry:       cfg.registry,
		Liveness:       cfg.checker,
		MaxAttempts:    cfg.maxAttempts,
		RetryDelay:     cfg.retryDelay,
		Logger:         cfg.logger,
		MetricsEnabled: metricsEnabled,
	})

	tracer := tracing.Tracer(cfg.tracerProvider)

	return &Selector{
		assigner: assigner,
		finder:   tracing.Finder(finder, tracer),
		rotator:  tracing.Rotator(assigner, tracer),
	}, nil
}

// ActiveHost returns the single active host of a singleton-style topic.
func (s *Selector) ActiveHost(ctx context.Context, topic Topic) (string, error) {
	return s.finder.ResolveActiveHost(ctx, topic)
}

// NextHost returns the next live host of a topic in round-robin order.
func (s *Selector) NextHost(ctx context.Context, topic Topic) (string, error) {
	return s.rotator.NextHost(ctx, topic)
}

// EnsureInitialized creates the rotation cursor of each topic unless it already exists.
func (s *Selector) EnsureInitialized(ctx context.Context, topics ...Topic) error {
	for _, topic := range topics {
		if err := s.assigner.EnsureInitialized(ctx, topic); err != nil {
			return err
		}
	}
	return nil
}

// WithDatabase sets the SQL database holding the registry tables and its dialect.
func WithDatabase(db *sql.DB, dialect sqlstore.Dialect) Option {
	return func(c *config) {
		c.db = db
		c.dialect = dialect
	}
}

// WithStore sets the registry directly, for example a Redis or in-memory store.
// It takes precedence over WithDatabase.
func WithStore(registry store.Registry) Option {
	return func(c *config) {
		c.registry = registry
	}
}

// WithStaleThreshold sets how old a heartbeat may be before its host counts as dead.
func WithStaleThreshold(d time.Duration) Option {
	return func(c *config) {
		c.staleAfter = d
	}
}

// WithLiveness sets a custom liveness checker.
func WithLiveness(checker liveness.Checker) Option {
	return func(c *config) {
		c.checker = checker
	}
}

// WithMaxAttempts sets the number of rotation attempts per NextHost call.
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		c.maxAttempts = n
	}
}

// WithRetryDelay sets the pause between two rotation attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(c *config) {
		c.retryDelay = d
	}
}

// WithActivePolicy sets how ActiveHost behaves during a failover window.
func WithActivePolicy(policy resolver.Policy) Option {
	return func(c *config) {
		c.policy = policy
	}
}

// WithPollInterval sets the minimum time between two polls of the poll policy.
func WithPollInterval(interval time.Duration) Option {
	return func(c *config) {
		c.pollInterval = interval
	}
}

// WithPollTimeout bounds the total time the poll policy waits.
func WithPollTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.pollTimeout = timeout
	}
}

// WithLogger sets the logger for observability.
func WithLogger(logger es.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetricsEnabled enables or disables Prometheus metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(c *config) {
		c.metricsEnabled = &enabled
	}
}

// WithTableNames sets custom table names for the SQL registry.
// The defaults are "hostselect_services" and "hostselect_rotation_cursors".
func WithTableNames(servicesTable, cursorsTable string) Option {
	return func(c *config) {
		c.tableConfig = sqlstore.TableConfig{
			ServicesTable: servicesTable,
			CursorsTable:  cursorsTable,
		}
	}
}

// WithTracerProvider sets the OpenTelemetry provider used for selection spans.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) {
		c.tracerProvider = provider
	}
}

// RunMigrations creates the registry tables with the default names.
//
// This should typically be run once during application deployment or startup.
// To use custom table names, use RunMigrationsWithTableNames.
func RunMigrations(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect) error {
	return RunMigrationsWithTableNames(ctx, db, dialect, sqlstore.DefaultTableConfig())
}

// RunMigrationsWithTableNames creates the registry tables with custom names.
// Use this if you specified custom table names via WithTableNames option.
func RunMigrationsWithTableNames(ctx context.Context, db *sql.DB, dialect sqlstore.Dialect, config sqlstore.TableConfig) error {
	return sqlstore.NewWithConfig(db, dialect, config).RunMigrations(ctx)
}
