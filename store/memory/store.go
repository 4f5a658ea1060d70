package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/google/uuid"
)

type serviceKey struct {
	topic hostselect.Topic
	host  string
}

// Store is an in-memory implementation of store.Store for tests and single-process use.
// It provides thread-safe access to service records and cursors using a sync.RWMutex.
type Store struct {
	mu       sync.RWMutex
	services map[serviceKey]hostselect.ServiceRecord
	cursors  map[hostselect.Topic]hostselect.RotationCursor
	now      func() time.Time
}

// New creates a new in-memory store that stamps records with time.Now.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a new in-memory store that stamps records with now.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		services: make(map[serviceKey]hostselect.ServiceRecord),
		cursors:  make(map[hostselect.Topic]hostselect.RotationCursor),
		now:      now,
	}
}

// ListServices returns the records registered for a topic, ordered by host.
func (s *Store) ListServices(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := []hostselect.ServiceRecord{}
	for key, rec := range s.services {
		if key.topic != topic {
			continue
		}
		if rec.Disabled && !includeDisabled {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Host < records[j].Host
	})

	return records, nil
}

// GetCursor returns the rotation cursor for a topic.
// Returns hostselect.ErrCursorNotFound if the cursor has not been created.
func (s *Store) GetCursor(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cursor, ok := s.cursors[topic]
	if !ok {
		return hostselect.RotationCursor{}, hostselect.ErrCursorNotFound
	}

	return cursor, nil
}

// CreateCursorIfAbsent creates the rotation cursor unless one already exists.
func (s *Store) CreateCursorIfAbsent(ctx context.Context, topic hostselect.Topic, initialIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cursors[topic]; ok {
		return nil
	}

	s.cursors[topic] = hostselect.RotationCursor{
		Topic:     topic,
		Index:     initialIndex,
		UpdatedAt: s.now(),
	}

	return nil
}

// ConditionalUpdateCursor sets the cursor to newIndex only if it still holds expectedIndex.
func (s *Store) ConditionalUpdateCursor(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cursor, ok := s.cursors[topic]
	if !ok || cursor.Index != expectedIndex {
		return false, nil
	}

	cursor.Index = newIndex
	cursor.UpdatedAt = s.now()
	s.cursors[topic] = cursor

	return true, nil
}

// RegisterService creates the record for topic and host, or refreshes its heartbeat.
func (s *Store) RegisterService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := serviceKey{topic: topic, host: host}

	rec, ok := s.services[key]
	if ok {
		rec.UpdatedAt = now
		s.services[key] = rec
		return rec, nil
	}

	rec = hostselect.ServiceRecord{
		ID:        uuid.New().String(),
		Topic:     topic,
		Host:      host,
		UpdatedAt: now,
		CreatedAt: now,
	}
	s.services[key] = rec

	return rec, nil
}

// Heartbeat updates the heartbeat time of a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) Heartbeat(ctx context.Context, topic hostselect.Topic, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := serviceKey{topic: topic, host: host}
	rec, ok := s.services[key]
	if !ok {
		return store.ErrServiceNotFound
	}

	rec.UpdatedAt = s.now()
	s.services[key] = rec

	return nil
}

// SetDisabled enables or disables a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) SetDisabled(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := serviceKey{topic: topic, host: host}
	rec, ok := s.services[key]
	if !ok {
		return store.ErrServiceNotFound
	}

	rec.Disabled = disabled
	s.services[key] = rec

	return nil
}

// RemoveService deletes a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) RemoveService(ctx context.Context, topic hostselect.Topic, host string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := serviceKey{topic: topic, host: host}
	if _, ok := s.services[key]; !ok {
		return store.ErrServiceNotFound
	}

	delete(s.services, key)

	return nil
}

var _ store.Store = (*Store)(nil)
