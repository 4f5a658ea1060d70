package store

import (
	"context"
	"sync"

	"github.com/getpup/pupsourcing-hostselect"
)

// MockStore is a configurable mock implementation of Store for use in tests.
// It allows setting up return values, tracking method calls, and injecting
// errors for testing error paths.
type MockStore struct {
	mu sync.RWMutex

	// ListServicesFunc is called by ListServices if set.
	ListServicesFunc func(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error)

	// GetCursorFunc is called by GetCursor if set.
	GetCursorFunc func(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error)

	// CreateCursorIfAbsentFunc is called by CreateCursorIfAbsent if set.
	CreateCursorIfAbsentFunc func(ctx context.Context, topic hostselect.Topic, initialIndex int) error

	// ConditionalUpdateCursorFunc is called by ConditionalUpdateCursor if set.
	ConditionalUpdateCursorFunc func(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error)

	// RegisterServiceFunc is called by RegisterService if set.
	RegisterServiceFunc func(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error)

	// HeartbeatFunc is called by Heartbeat if set.
	HeartbeatFunc func(ctx context.Context, topic hostselect.Topic, host string) error

	// SetDisabledFunc is called by SetDisabled if set.
	SetDisabledFunc func(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error

	// RemoveServiceFunc is called by RemoveService if set.
	RemoveServiceFunc func(ctx context.Context, topic hostselect.Topic, host string) error

	// Call tracking
	ListServicesCalls            []ListServicesCall
	GetCursorCalls               []GetCursorCall
	CreateCursorIfAbsentCalls    []CreateCursorIfAbsentCall
	ConditionalUpdateCursorCalls []ConditionalUpdateCursorCall
	RegisterServiceCalls         []ServiceCall
	HeartbeatCalls               []ServiceCall
	SetDisabledCalls             []SetDisabledCall
	RemoveServiceCalls           []ServiceCall
}

// Call tracking structs
type ListServicesCall struct {
	Topic           hostselect.Topic
	IncludeDisabled bool
}

type GetCursorCall struct {
	Topic hostselect.Topic
}

type CreateCursorIfAbsentCall struct {
	Topic        hostselect.Topic
	InitialIndex int
}

type ConditionalUpdateCursorCall struct {
	Topic         hostselect.Topic
	ExpectedIndex int
	NewIndex      int
}

type ServiceCall struct {
	Topic hostselect.Topic
	Host  string
}

type SetDisabledCall struct {
	Topic    hostselect.Topic
	Host     string
	Disabled bool
}

// NewMockStore creates a new mock store.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// ListServices implements Registry.
func (m *MockStore) ListServices(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error) {
	m.mu.Lock()
	m.ListServicesCalls = append(m.ListServicesCalls, ListServicesCall{
		Topic:           topic,
		IncludeDisabled: includeDisabled,
	})
	m.mu.Unlock()

	if m.ListServicesFunc != nil {
		return m.ListServicesFunc(ctx, topic, includeDisabled)
	}

	return []hostselect.ServiceRecord{}, nil
}

// GetCursor implements Registry.
func (m *MockStore) GetCursor(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error) {
	m.mu.Lock()
	m.GetCursorCalls = append(m.GetCursorCalls, GetCursorCall{
		Topic: topic,
	})
	m.mu.Unlock()

	if m.GetCursorFunc != nil {
		return m.GetCursorFunc(ctx, topic)
	}

	return hostselect.RotationCursor{}, hostselect.ErrCursorNotFound
}

// CreateCursorIfAbsent implements Registry.
func (m *MockStore) CreateCursorIfAbsent(ctx context.Context, topic hostselect.Topic, initialIndex int) error {
	m.mu.Lock()
	m.CreateCursorIfAbsentCalls = append(m.CreateCursorIfAbsentCalls, CreateCursorIfAbsentCall{
		Topic:        topic,
		InitialIndex: initialIndex,
	})
	m.mu.Unlock()

	if m.CreateCursorIfAbsentFunc != nil {
		return m.CreateCursorIfAbsentFunc(ctx, topic, initialIndex)
	}

	return nil
}

// ConditionalUpdateCursor implements Registry.
func (m *MockStore) ConditionalUpdateCursor(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error) {
	m.mu.Lock()
	m.ConditionalUpdateCursorCalls = append(m.ConditionalUpdateCursorCalls, ConditionalUpdateCursorCall{
		Topic:         topic,
		ExpectedIndex: expectedIndex,
		NewIndex:      newIndex,
	})
	m.mu.Unlock()

	if m.ConditionalUpdateCursorFunc != nil {
		return m.ConditionalUpdateCursorFunc(ctx, topic, expectedIndex, newIndex)
	}

	return false, nil
}

// RegisterService implements Registrar.
func (m *MockStore) RegisterService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error) {
	m.mu.Lock()
	m.RegisterServiceCalls = append(m.RegisterServiceCalls, ServiceCall{
		Topic: topic,
		Host:  host,
	})
	m.mu.Unlock()

	if m.RegisterServiceFunc != nil {
		return m.RegisterServiceFunc(ctx, topic, host)
	}

	return hostselect.ServiceRecord{Topic: topic, Host: host}, nil
}

// Heartbeat implements Registrar.
func (m *MockStore) Heartbeat(ctx context.Context, topic hostselect.Topic, host string) error {
	m.mu.Lock()
	m.HeartbeatCalls = append(m.HeartbeatCalls, ServiceCall{
		Topic: topic,
		Host:  host,
	})
	m.mu.Unlock()

	if m.HeartbeatFunc != nil {
		return m.HeartbeatFunc(ctx, topic, host)
	}

	return nil
}

// SetDisabled implements Registrar.
func (m *MockStore) SetDisabled(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error {
	m.mu.Lock()
	m.SetDisabledCalls = append(m.SetDisabledCalls, SetDisabledCall{
		Topic:    topic,
		Host:     host,
		Disabled: disabled,
	})
	m.mu.Unlock()

	if m.SetDisabledFunc != nil {
		return m.SetDisabledFunc(ctx, topic, host, disabled)
	}

	return nil
}

// RemoveService implements Registrar.
func (m *MockStore) RemoveService(ctx context.Context, topic hostselect.Topic, host string) error {
	m.mu.Lock()
	m.RemoveServiceCalls = append(m.RemoveServiceCalls, ServiceCall{
		Topic: topic,
		Host:  host,
	})
	m.mu.Unlock()

	if m.RemoveServiceFunc != nil {
		return m.RemoveServiceFunc(ctx, topic, host)
	}

	return nil
}

// CASCalls returns a copy of the recorded ConditionalUpdateCursor calls.
// Safe to use while other goroutines are still calling the mock.
func (m *MockStore) CASCalls() []ConditionalUpdateCursorCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]ConditionalUpdateCursorCall, len(m.ConditionalUpdateCursorCalls))
	copy(calls, m.ConditionalUpdateCursorCalls)
	return calls
}

// Reset clears all call tracking data.
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ListServicesCalls = nil
	m.GetCursorCalls = nil
	m.CreateCursorIfAbsentCalls = nil
	m.ConditionalUpdateCursorCalls = nil
	m.RegisterServiceCalls = nil
	m.HeartbeatCalls = nil
	m.SetDisabledCalls = nil
	m.RemoveServiceCalls = nil
}

var _ Store = (*MockStore)(nil)
