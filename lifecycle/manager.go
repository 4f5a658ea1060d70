// Package lifecycle keeps a worker's service record fresh in the registry.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing/es"
)

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Store records this worker's registration and heartbeats (required).
	Store store.Registrar

	// Topic is the service topic the worker serves (required).
	Topic hostselect.Topic

	// Host is the worker's host name, unique within the topic (required).
	Host string

	// HeartbeatInterval is the interval between heartbeats (default: 10s).
	// Keep it well below the liveness threshold of the selecting side.
	HeartbeatInterval time.Duration

	// MaxConsecutiveFailures stops the heartbeat loop after that many failed
	// heartbeats in a row (default: 3).
	MaxConsecutiveFailures int

	// Logger is for observability (optional).
	Logger es.Logger

	// MetricsEnabled records heartbeat metrics when true.
	MetricsEnabled bool
}

// Manager registers a single worker and heartbeats on its behalf.
type Manager struct {
	config Config

	mu     sync.RWMutex
	record hostselect.ServiceRecord
}

// New creates a new lifecycle Manager with the given configuration.
// Applies default values for HeartbeatInterval and MaxConsecutiveFailures if not set.
func New(cfg Config) *Manager {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 10 * time.Second
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = 3
	}

	return &Manager{
		config: cfg,
	}
}

// Register creates or refreshes the worker's service record and returns it.
func (m *Manager) Register(ctx context.Context) (hostselect.ServiceRecord, error) {
	if m.config.Topic == "" {
		return hostselect.ServiceRecord{}, hostselect.ErrEmptyTopic
	}
	if m.config.Host == "" {
		return hostselect.ServiceRecord{}, errors.New("host is required")
	}

	rec, err := m.config.Store.RegisterService(ctx, m.config.Topic, m.config.Host)
	if err != nil {
		return hostselect.ServiceRecord{}, fmt.Errorf("failed to register %s on topic %q: %w", m.config.Host, m.config.Topic, err)
	}

	m.mu.Lock()
	m.record = rec
	m.mu.Unlock()

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "service registered", "topic", m.config.Topic, "host", m.config.Host, "id", rec.ID)
	}
	return rec, nil
}

// StartHeartbeat runs a heartbeat loop until the context is cancelled.
//
// A record that vanished from the registry is registered again. The loop returns
// the last error once MaxConsecutiveFailures heartbeats in a row have failed.
func (m *Manager) StartHeartbeat(ctx context.Context) error {
	ticker := time.NewTicker(m.config.HeartbeatInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := m.beat(ctx)
			if err == nil {
				failures = 0
				continue
			}
			if ctx.Err() != nil {
				return nil
			}

			failures++
			if m.config.Logger != nil {
				m.config.Logger.Error(ctx, "heartbeat failed",
					"topic", m.config.Topic,
					"host", m.config.Host,
					"consecutiveFailures", failures,
					"error", err)
			}
			if failures >= m.config.MaxConsecutiveFailures {
				return fmt.Errorf("heartbeat for %s on topic %q failed %d times in a row: %w",
					m.config.Host, m.config.Topic, failures, err)
			}
		}
	}
}

func (m *Manager) beat(ctx context.Context) error {
	start := time.Now()
	err := m.config.Store.Heartbeat(ctx, m.config.Topic, m.config.Host)
	if errors.Is(err, store.ErrServiceNotFound) {
		if m.config.Logger != nil {
			m.config.Logger.Info(ctx, "service record missing, registering again", "topic", m.config.Topic, "host", m.config.Host)
		}
		_, err = m.Register(ctx)
	}

	if m.config.MetricsEnabled {
		metrics.NewCollector(string(m.config.Topic)).ObserveHeartbeat(err, time.Since(start))
	}
	if err == nil && m.config.Logger != nil {
		m.config.Logger.Debug(ctx, "heartbeat sent", "topic", m.config.Topic, "host", m.config.Host)
	}
	return err
}

// Disable takes the worker out of selection without removing its record.
func (m *Manager) Disable(ctx context.Context) error {
	return m.setDisabled(ctx, true)
}

// Enable puts a disabled worker back into selection.
func (m *Manager) Enable(ctx context.Context) error {
	return m.setDisabled(ctx, false)
}

func (m *Manager) setDisabled(ctx context.Context, disabled bool) error {
	if err := m.config.Store.SetDisabled(ctx, m.config.Topic, m.config.Host, disabled); err != nil {
		return fmt.Errorf("failed to update %s on topic %q: %w", m.config.Host, m.config.Topic, err)
	}

	m.mu.Lock()
	m.record.Disabled = disabled
	m.mu.Unlock()

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "service availability updated", "topic", m.config.Topic, "host", m.config.Host, "disabled", disabled)
	}
	return nil
}

// Deregister removes the worker's record from the registry.
// A record that is already gone is not an error.
func (m *Manager) Deregister(ctx context.Context) error {
	err := m.config.Store.RemoveService(ctx, m.config.Topic, m.config.Host)
	if err != nil && !errors.Is(err, store.ErrServiceNotFound) {
		return fmt.Errorf("failed to deregister %s on topic %q: %w", m.config.Host, m.config.Topic, err)
	}

	if m.config.Logger != nil {
		m.config.Logger.Info(ctx, "service deregistered", "topic", m.config.Topic, "host", m.config.Host)
	}
	return nil
}

// Record returns the service record as last registered by this manager.
func (m *Manager) Record() hostselect.ServiceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.record
}
