// Package resolver determines the single active host of a singleton-style service.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/liveness"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing/es"
)

// OperationActiveHost is the operation name used in errors, logs and metrics.
const OperationActiveHost = "active_host"

// Finder returns the active host of a topic.
type Finder interface {
	ResolveActiveHost(ctx context.Context, topic hostselect.Topic) (string, error)
}

// Config holds configuration for the Resolver.
type Config struct {
	// Registry lists the service records (required).
	Registry store.Registry

	// Liveness decides which records are up (default: heartbeat within 60s).
	Liveness liveness.Checker

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled records selection metrics when true.
	MetricsEnabled bool
}

// Resolver picks the active host from the live records of a topic in a single shot.
// It never retries; see Poller for riding out a failover window.
type Resolver struct {
	config Config
}

// New creates a new Resolver. A nil Liveness uses the default heartbeat checker.
func New(cfg Config) *Resolver {
	if cfg.Liveness == nil {
		cfg.Liveness = liveness.NewHeartbeat(liveness.DefaultStaleAfter)
	}
	return &Resolver{config: cfg}
}

// ResolveActiveHost returns the host of the one live record of the topic.
//
// When two records are live, the one with the strictly later heartbeat wins; equal
// heartbeats or more than two live records fail with ErrAmbiguousActiveHost.
// No live record fails with ErrNoActiveHost. Registry errors are returned wrapped.
func (r *Resolver) ResolveActiveHost(ctx context.Context, topic hostselect.Topic) (host string, err error) {
	if topic == "" {
		return "", hostselect.ErrEmptyTopic
	}

	if r.config.MetricsEnabled {
		start := time.Now()
		defer func() {
			metrics.NewCollector(string(topic)).ObserveSelection(OperationActiveHost, err, time.Since(start))
		}()
	}

	records, err := r.config.Registry.ListServices(ctx, topic, false)
	if err != nil {
		if r.config.Logger != nil {
			r.config.Logger.Error(ctx, "failed to list services", "topic", topic, "error", err)
		}
		return "", fmt.Errorf("failed to list services for topic %q: %w", topic, err)
	}

	live := liveness.Filter(r.config.Liveness, records)
	if r.config.MetricsEnabled {
		metrics.NewCollector(string(topic)).SetLiveServices(len(live))
	}

	host, err = pickActive(live)
	if err != nil {
		if r.config.Logger != nil {
			r.config.Logger.Info(ctx, "no single active host",
				"topic", topic,
				"registered", len(records),
				"live", len(live),
				"error", err)
		}
		return "", fmt.Errorf("%s for topic %q: %w", OperationActiveHost, topic, err)
	}

	if r.config.Logger != nil {
		r.config.Logger.Debug(ctx, "resolved active host", "topic", topic, "host", host, "live", len(live))
	}
	return host, nil
}

// pickActive applies the failover-window decision table to the live records.
func pickActive(live []hostselect.ServiceRecord) (string, error) {
	switch len(live) {
	case 0:
		return "", hostselect.ErrNoActiveHost
	case 1:
		return live[0].Host, nil
	case 2:
		a, b := live[0], live[1]
		switch {
		case a.UpdatedAt.After(b.UpdatedAt):
			return a.Host, nil
		case b.UpdatedAt.After(a.UpdatedAt):
			return b.Host, nil
		default:
			return "", hostselect.ErrAmbiguousActiveHost
		}
	default:
		return "", hostselect.ErrAmbiguousActiveHost
	}
}

var _ Finder = (*Resolver)(nil)
