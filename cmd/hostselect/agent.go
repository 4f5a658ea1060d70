package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/lifecycle"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"golang.org/x/sync/errgroup"
)

// runAgent registers this process on the configured topic and keeps the record fresh
// until ctx is cancelled or heartbeats keep failing.
func (a *app) runAgent(ctx context.Context) error {
	host := a.cfg.Agent.Host
	if host == "" {
		name, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("agent.host is not set and the hostname is unavailable: %w", err)
		}
		host = name
	}
	if a.cfg.Agent.Topic == "" {
		return errors.New("agent.topic is required")
	}

	mgr := lifecycle.New(lifecycle.Config{
		Store:                  a.backend.store,
		Topic:                  hostselect.Topic(a.cfg.Agent.Topic),
		Host:                   host,
		HeartbeatInterval:      a.cfg.Agent.HeartbeatInterval,
		MaxConsecutiveFailures: a.cfg.Agent.MaxConsecutiveFailures,
		Logger:                 a.logger,
		MetricsEnabled:         a.cfg.Metrics.Enabled,
	})

	// Bind before registering so a busy port leaves nothing behind in the registry.
	var srv *metrics.Server
	if a.cfg.Metrics.Enabled {
		srv = metrics.NewServer(a.cfg.Metrics.ListenAddr, a.backend.ping)
		if err := srv.Start(); err != nil {
			return err
		}
		a.logger.Info(ctx, "metrics server listening", "addr", srv.Addr())
	}

	if _, err := mgr.Register(ctx); err != nil {
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = errors.Join(err, srv.Shutdown(shutdownCtx))
		}
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return mgr.StartHeartbeat(gctx)
	})

	if srv != nil {
		g.Go(func() error {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				case <-ticker.C:
					if err := srv.Err(); err != nil {
						return fmt.Errorf("metrics server failed: %w", err)
					}
				}
			}
		})
	}

	err := g.Wait()

	if a.cfg.Agent.DeregisterOnExit {
		deregisterCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if derr := mgr.Deregister(deregisterCtx); derr != nil {
			err = errors.Join(err, derr)
		}
	}

	if err != nil {
		return err
	}
	a.logger.Info(ctx, "agent stopped", "topic", a.cfg.Agent.Topic, "host", host)
	return nil
}
