package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing/es"
	"golang.org/x/time/rate"
)

// PollConfig holds configuration for the Poller.
type PollConfig struct {
	// Interval is the minimum time between two resolution attempts (default: 1s).
	Interval time.Duration

	// Timeout bounds the total time spent polling (default: 30s).
	Timeout time.Duration

	// Logger is for observability (optional).
	Logger es.Logger
}

// Poller re-runs a single-shot Finder while the topic is inside a failover window,
// that is while the outcome is ErrNoActiveHost or ErrAmbiguousActiveHost.
// Any other error stops polling immediately.
type Poller struct {
	finder Finder
	config PollConfig
}

// NewPoller wraps finder with polling. Applies default values if zero.
func NewPoller(finder Finder, cfg PollConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Poller{finder: finder, config: cfg}
}

// ResolveActiveHost polls the wrapped Finder until it returns a host, returns a
// non-retryable error, or the timeout or ctx expires. On expiry the last resolution
// error is returned wrapped together with the context error.
func (p *Poller) ResolveActiveHost(ctx context.Context, topic hostselect.Topic) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	// Burst of one: the first attempt runs immediately.
	limiter := rate.NewLimiter(rate.Every(p.config.Interval), 1)

	var lastErr error
	polls := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			if lastErr == nil {
				return "", fmt.Errorf("failed to resolve active host for topic %q: %w", topic, err)
			}
			if p.config.Logger != nil {
				p.config.Logger.Error(ctx, "gave up waiting for active host", "topic", topic, "polls", polls, "error", lastErr)
			}
			cause := ctx.Err()
			if cause == nil {
				// The limiter refuses to wait past the deadline before it arrives.
				cause = context.DeadlineExceeded
			}
			return "", fmt.Errorf("failed to resolve active host for topic %q after %d polls: %w: %w",
				topic, polls, lastErr, cause)
		}

		polls++
		host, err := p.finder.ResolveActiveHost(ctx, topic)
		if err == nil {
			return host, nil
		}
		if !Retryable(err) {
			return "", err
		}

		lastErr = err
		if p.config.Logger != nil {
			p.config.Logger.Debug(ctx, "waiting for failover window to close", "topic", topic, "poll", polls, "error", err)
		}
	}
}

// Retryable reports whether err describes a failover window that may close on its own.
func Retryable(err error) bool {
	return errors.Is(err, hostselect.ErrNoActiveHost) || errors.Is(err, hostselect.ErrAmbiguousActiveHost)
}

var _ Finder = (*Poller)(nil)
