// Package redisstore implements the registry on Redis.
//
// Service records are Hashes indexed per topic by a Set of hosts, and the rotation
// cursor is a Hash advanced by a Lua compare-and-swap script, so a lost race never
// writes anything.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
package redisstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Store is a Redis implementation of store.Store.
type Store struct {
	client goredis.UniversalClient
	keys   keys
	now    func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithKeyPrefix sets the prefix of every key (default: "hostselect:").
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.keys.prefix = prefix
	}
}

// New creates a Redis-backed store.
func New(client goredis.UniversalClient, opts ...Option) *Store {
	s := &Store{
		client: client,
		keys:   keys{prefix: DefaultKeyPrefix},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks connectivity to Redis.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return unavailable("failed to ping redis", err)
	}
	return nil
}

// ListServices returns the records of the topic ordered by host.
func (s *Store) ListServices(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error) {
	hosts, err := s.client.SMembers(ctx, s.keys.servicesKey(topic)).Result()
	if err != nil {
		return nil, unavailable("failed to list services", err)
	}

	records := make([]hostselect.ServiceRecord, 0, len(hosts))
	if len(hosts) == 0 {
		return records, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(hosts))
	for i, host := range hosts {
		cmds[i] = pipe.HGetAll(ctx, s.keys.serviceKey(topic, host))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, unavailable("failed to load services", err)
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		// A host may linger in the index after its record was removed.
		if len(fields) == 0 {
			continue
		}

		rec, err := parseService(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to decode service record: %w", err)
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

// GetCursor returns the rotation cursor of the topic.
// Returns hostselect.ErrCursorNotFound if it does not exist.
func (s *Store) GetCursor(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error) {
	fields, err := s.client.HGetAll(ctx, s.keys.cursorKey(topic)).Result()
	if err != nil {
		return hostselect.RotationCursor{}, unavailable("failed to get cursor", err)
	}
	if len(fields) == 0 {
		return hostselect.RotationCursor{}, hostselect.ErrCursorNotFound
	}

	cursor, err := parseCursor(topic, fields)
	if err != nil {
		return hostselect.RotationCursor{}, fmt.Errorf("failed to decode cursor: %w", err)
	}
	return cursor, nil
}

// CreateCursorIfAbsent creates the cursor at initialIndex unless one exists.
func (s *Store) CreateCursorIfAbsent(ctx context.Context, topic hostselect.Topic, initialIndex int) error {
	key := s.keys.cursorKey(topic)
	now := formatTime(s.now())

	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "last_index", strconv.Itoa(initialIndex))
		pipe.HSetNX(ctx, key, "updated_at", now)
		return nil
	})
	if err != nil {
		return unavailable("failed to create cursor", err)
	}
	return nil
}

// ConditionalUpdateCursor sets the cursor to newIndex only if it still holds expectedIndex.
func (s *Store) ConditionalUpdateCursor(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error) {
	n, err := compareAndSwapScript.Run(ctx, s.client,
		[]string{s.keys.cursorKey(topic)},
		strconv.Itoa(expectedIndex), strconv.Itoa(newIndex), formatTime(s.now()),
	).Int()
	if err != nil {
		return false, unavailable("failed to update cursor", err)
	}
	return n == 1, nil
}

// RegisterService creates the record for topic and host, or refreshes its heartbeat.
func (s *Store) RegisterService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error) {
	key := s.keys.serviceKey(topic, host)

	err := registerScript.Run(ctx, s.client,
		[]string{key, s.keys.servicesKey(topic)},
		uuid.New().String(), string(topic), host, formatTime(s.now()),
	).Err()
	if err != nil {
		return hostselect.ServiceRecord{}, unavailable("failed to register service", err)
	}

	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return hostselect.ServiceRecord{}, unavailable("failed to get service", err)
	}
	if len(fields) == 0 {
		return hostselect.ServiceRecord{}, store.ErrServiceNotFound
	}
	return parseService(fields)
}

// Heartbeat updates the heartbeat time of a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) Heartbeat(ctx context.Context, topic hostselect.Topic, host string) error {
	return s.touch(ctx, "failed to update heartbeat", s.keys.serviceKey(topic, host), "updated_at", formatTime(s.now()))
}

// SetDisabled enables or disables a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) SetDisabled(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error {
	return s.touch(ctx, "failed to update disabled flag", s.keys.serviceKey(topic, host), "disabled", formatBool(disabled))
}

// RemoveService deletes a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) RemoveService(ctx context.Context, topic hostselect.Topic, host string) error {
	var deleted *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		deleted = pipe.Del(ctx, s.keys.serviceKey(topic, host))
		pipe.SRem(ctx, s.keys.servicesKey(topic), host)
		return nil
	})
	if err != nil {
		return unavailable("failed to remove service", err)
	}
	if deleted.Val() == 0 {
		return store.ErrServiceNotFound
	}
	return nil
}

func (s *Store) touch(ctx context.Context, msg, key, field, value string) error {
	n, err := touchScript.Run(ctx, s.client, []string{key}, field, value).Int()
	if err != nil {
		return unavailable(msg, err)
	}
	if n == 0 {
		return store.ErrServiceNotFound
	}
	return nil
}

func parseService(fields map[string]string) (hostselect.ServiceRecord, error) {
	updatedAt, err := parseTime(fields["updated_at"])
	if err != nil {
		return hostselect.ServiceRecord{}, fmt.Errorf("updated_at: %w", err)
	}
	createdAt, err := parseTime(fields["created_at"])
	if err != nil {
		return hostselect.ServiceRecord{}, fmt.Errorf("created_at: %w", err)
	}

	return hostselect.ServiceRecord{
		ID:        fields["id"],
		Topic:     hostselect.Topic(fields["topic"]),
		Host:      fields["host"],
		Disabled:  fields["disabled"] == "1",
		UpdatedAt: updatedAt,
		CreatedAt: createdAt,
	}, nil
}

func parseCursor(topic hostselect.Topic, fields map[string]string) (hostselect.RotationCursor, error) {
	index, err := strconv.Atoi(fields["last_index"])
	if err != nil {
		return hostselect.RotationCursor{}, fmt.Errorf("last_index: %w", err)
	}
	updatedAt, err := parseTime(fields["updated_at"])
	if err != nil {
		return hostselect.RotationCursor{}, fmt.Errorf("updated_at: %w", err)
	}

	return hostselect.RotationCursor{Topic: topic, Index: index, UpdatedAt: updatedAt}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func unavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, hostselect.ErrRegistryUnavailable, err)
}

var _ store.Store = (*Store)(nil)
