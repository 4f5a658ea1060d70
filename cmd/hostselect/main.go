// Command hostselect operates a host selection registry from the shell.
//
// Usage:
//
//	hostselect [-config file.yaml] <command> [args]
//
// Commands:
//
//	migrate              create the registry tables
//	init <topic>...      create the rotation cursor of each topic
//	active <topic>       print the active host of a singleton topic
//	next <topic>         print the next host of a topic in round-robin order
//	agent                register agent.host on agent.topic and heartbeat until stopped
//	version              print the version
//
// Every config key can be overridden from the environment, e.g.
// HOSTSELECT_BACKEND=redis or HOSTSELECT_DATABASE_DSN=postgres://...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/internal/config"
	"github.com/getpup/pupsourcing-hostselect/internal/logging"
	selector "github.com/getpup/pupsourcing-hostselect/pkg/hostselect"
	"github.com/getpup/pupsourcing-hostselect/pkg/version"
	"github.com/getpup/pupsourcing-hostselect/resolver"
	"github.com/getpup/pupsourcing-hostselect/tracing"
	"go.opentelemetry.io/otel/trace"
)

// exitUsage is returned for malformed command lines.
const exitUsage = 2

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app carries everything a command needs.
type app struct {
	cfg      config.Config
	logger   *logging.Slog
	backend  *backend
	tracer   trace.TracerProvider
	stdout   io.Writer
	shutdown []func(context.Context) error
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hostselect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a YAML config file")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: hostselect [-config file.yaml] <migrate|init|active|next|agent|version> [args]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	if command == "version" {
		fmt.Fprintf(stdout, "hostselect v%s\n", version.Version)
		return 0
	}

	a, err := setup(ctx, *configPath, stdout, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer a.close()

	switch command {
	case "migrate":
		err = a.migrate(ctx)
	case "init":
		err = a.initTopics(ctx, rest)
	case "active":
		err = a.pick(ctx, rest, func(s *selector.Selector, topic hostselect.Topic) (string, error) {
			return s.ActiveHost(ctx, topic)
		})
	case "next":
		err = a.pick(ctx, rest, func(s *selector.Selector, topic hostselect.Topic) (string, error) {
			return s.NextHost(ctx, topic)
		})
	case "agent":
		err = a.runAgent(ctx)
	default:
		fmt.Fprintf(stderr, "Error: unknown command %q\n", command)
		fs.Usage()
		return exitUsage
	}

	if err != nil {
		a.logger.Error(ctx, "command failed", "command", command, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func setup(ctx context.Context, configPath string, stdout, stderr io.Writer) (*app, error) {
	cfg, v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	handler, err := logging.NewHandler(cfg.Log.Format, levelVar, stderr)
	if err != nil {
		return nil, err
	}
	base := slog.New(handler)
	slog.SetDefault(base)

	if configPath != "" {
		config.Watch(v, func(next config.Config) {
			lvl, err := logging.ParseLevel(next.Log.Level)
			if err != nil {
				base.Error("ignoring invalid log level", "level", next.Log.Level, "error", err)
				return
			}
			levelVar.Set(lvl)
		})
	}

	a := &app{
		cfg:    cfg,
		logger: logging.New(base).With("backend", cfg.Backend),
		stdout: stdout,
	}

	if cfg.Tracing {
		provider := tracing.NewLogProvider(a.logger)
		a.tracer = provider
		a.shutdown = append(a.shutdown, provider.Shutdown)
	}

	b, err := openBackend(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.backend = b
	a.shutdown = append(a.shutdown, func(context.Context) error { return b.close() })

	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil {
			a.logger.Error(ctx, "shutdown failed", "error", err)
		}
	}
	a.shutdown = nil
}

func (a *app) selector() (*selector.Selector, error) {
	policy, err := resolver.ParsePolicy(a.cfg.Selection.ActivePolicy)
	if err != nil {
		return nil, err
	}

	return selector.New(
		selector.WithStore(a.backend.store),
		selector.WithStaleThreshold(a.cfg.Selection.StaleAfter),
		selector.WithMaxAttempts(a.cfg.Selection.MaxAttempts),
		selector.WithRetryDelay(a.cfg.Selection.RetryDelay),
		selector.WithActivePolicy(policy),
		selector.WithPollInterval(a.cfg.Selection.PollInterval),
		selector.WithPollTimeout(a.cfg.Selection.PollTimeout),
		selector.WithLogger(a.logger),
		selector.WithMetricsEnabled(a.cfg.Metrics.Enabled),
		selector.WithTracerProvider(a.tracer),
	)
}

func (a *app) migrate(ctx context.Context) error {
	if err := a.backend.migrate(ctx); err != nil {
		return err
	}
	a.logger.Info(ctx, "migrations applied")
	return nil
}

func (a *app) initTopics(ctx context.Context, topics []string) error {
	if len(topics) == 0 {
		return errors.New("init requires at least one topic")
	}

	sel, err := a.selector()
	if err != nil {
		return err
	}

	for _, t := range topics {
		if err := sel.EnsureInitialized(ctx, hostselect.Topic(t)); err != nil {
			return err
		}
		fmt.Fprintf(a.stdout, "initialized %s\n", t)
	}
	return nil
}

func (a *app) pick(ctx context.Context, args []string, fn func(*selector.Selector, hostselect.Topic) (string, error)) error {
	if len(args) != 1 {
		return errors.New("expected exactly one topic")
	}

	sel, err := a.selector()
	if err != nil {
		return err
	}

	host, err := fn(sel, hostselect.Topic(args[0]))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, host)
	return nil
}
