// Package rotation hands out worker hosts of a topic in round-robin order.
//
// The rotation position lives in a shared cursor record that is only ever advanced
// with a compare-and-swap, so any number of callers in any number of processes can
// rotate the same topic without a lock. A caller that loses the race re-reads the
// cursor and tries again, within a bounded attempt budget.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/liveness"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing/es"
)

// OperationNextHost is the operation name used in errors, logs and metrics.
const OperationNextHost = "next_host"

// DefaultMaxAttempts bounds the iterations of a single NextHost call.
const DefaultMaxAttempts = 10

// Config holds configuration for the Assigner.
type Config struct {
	// Registry holds the service records and rotation cursors (required).
	Registry store.Registry

	// Liveness decides whether a picked host is up (default: heartbeat within 60s).
	Liveness liveness.Checker

	// MaxAttempts bounds the iterations of one NextHost call (default: 10).
	// Every iteration consumes one attempt, whatever its outcome.
	MaxAttempts int

	// RetryDelay is the pause between two attempts (default: 0).
	RetryDelay time.Duration

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled records rotation metrics when true.
	MetricsEnabled bool
}

// Assigner rotates through the hosts of a topic.
type Assigner struct {
	config Config
}

// New creates a new Assigner with the given configuration.
// Applies default values for MaxAttempts and Liveness if zero.
func New(cfg Config) *Assigner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Liveness == nil {
		cfg.Liveness = liveness.NewHeartbeat(liveness.DefaultStaleAfter)
	}
	return &Assigner{config: cfg}
}

// EnsureInitialized creates the rotation cursor of the topic at index 0 unless one exists.
// It never overwrites an existing cursor and is safe to call from every process at startup.
func (a *Assigner) EnsureInitialized(ctx context.Context, topic hostselect.Topic) error {
	if topic == "" {
		return hostselect.ErrEmptyTopic
	}

	if err := a.config.Registry.CreateCursorIfAbsent(ctx, topic, 0); err != nil {
		return fmt.Errorf("failed to initialize rotation cursor for topic %q: %w", topic, err)
	}

	if a.config.Logger != nil {
		a.config.Logger.Debug(ctx, "rotation cursor initialized", "topic", topic)
	}
	return nil
}

// NextHost advances the rotation cursor of the topic by one slot and returns the host
// in that slot. Hosts are ordered by name, and the slot wraps back to the first host
// after the last one.
//
// A slot whose host is not live is skipped. After MaxAttempts iterations without a
// live pick, NextHost fails with ErrNoActiveHost; the cursor then stays at the last
// slot it committed. A missing cursor is created on the way.
func (a *Assigner) NextHost(ctx context.Context, topic hostselect.Topic) (host string, err error) {
	if topic == "" {
		return "", hostselect.ErrEmptyTopic
	}

	var collector *metrics.Collector
	attempts := 0
	if a.config.MetricsEnabled {
		collector = metrics.NewCollector(string(topic))
		start := time.Now()
		defer func() {
			collector.ObserveSelection(OperationNextHost, err, time.Since(start))
			if attempts > 0 {
				collector.ObserveRotationAttempts(attempts)
			}
		}()
	}

	records, err := a.config.Registry.ListServices(ctx, topic, false)
	if err != nil {
		if a.config.Logger != nil {
			a.config.Logger.Error(ctx, "failed to list services", "topic", topic, "error", err)
		}
		return "", fmt.Errorf("failed to list services for topic %q: %w", topic, err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%s for topic %q: %w", OperationNextHost, topic, hostselect.ErrNoHostsRegistered)
	}

	// Registries already order by host; sorting here keeps rotation independent of that.
	hostselect.SortByHost(records)
	n := len(records)

	for attempts < a.config.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%s for topic %q interrupted after %d attempts: %w", OperationNextHost, topic, attempts, err)
		}
		if attempts > 0 && a.config.RetryDelay > 0 {
			if err := sleep(ctx, a.config.RetryDelay); err != nil {
				return "", fmt.Errorf("%s for topic %q interrupted after %d attempts: %w", OperationNextHost, topic, attempts, err)
			}
		}
		attempts++

		cursor, err := a.config.Registry.GetCursor(ctx, topic)
		if errors.Is(err, hostselect.ErrCursorNotFound) {
			if err := a.config.Registry.CreateCursorIfAbsent(ctx, topic, 0); err != nil {
				return "", fmt.Errorf("failed to create rotation cursor for topic %q: %w", topic, err)
			}
			if a.config.Logger != nil {
				a.config.Logger.Info(ctx, "created missing rotation cursor", "topic", topic)
			}
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read rotation cursor for topic %q: %w", topic, err)
		}

		idx := cursor.Index
		newIdx := nextIndex(idx, n)

		committed, err := a.config.Registry.ConditionalUpdateCursor(ctx, topic, idx, newIdx)
		if err != nil {
			return "", fmt.Errorf("failed to advance rotation cursor for topic %q: %w", topic, err)
		}
		if !committed {
			if collector != nil {
				collector.IncCursorConflicts()
			}
			if a.config.Logger != nil {
				a.config.Logger.Debug(ctx, "rotation cursor moved concurrently, retrying",
					"topic", topic, "expectedIndex", idx, "attempt", attempts)
			}
			continue
		}

		picked := records[newIdx-1]
		if !a.config.Liveness.IsLive(picked) {
			if collector != nil {
				collector.IncDeadHostSkips()
			}
			if a.config.Logger != nil {
				a.config.Logger.Info(ctx, "skipping host that is not live",
					"topic", topic, "host", picked.Host, "index", newIdx, "attempt", attempts)
			}
			continue
		}

		if a.config.Logger != nil {
			a.config.Logger.Debug(ctx, "assigned host", "topic", topic, "host", picked.Host, "index", newIdx, "attempts", attempts)
		}
		return picked.Host, nil
	}

	if a.config.Logger != nil {
		a.config.Logger.Error(ctx, "rotation gave up without a live host", "topic", topic, "attempts", attempts, "hosts", n)
	}
	return "", fmt.Errorf("%s for topic %q: no live host after %d attempts: %w",
		OperationNextHost, topic, attempts, hostselect.ErrNoActiveHost)
}

// nextIndex returns the 1-based slot following idx in a rotation of n hosts.
// The result is always in [1, n], also when idx is stale for a shrunk host list.
func nextIndex(idx, n int) int {
	if idx < 0 {
		idx = 0
	}
	if idx < n {
		return idx + 1
	}
	return idx%n + 1
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
