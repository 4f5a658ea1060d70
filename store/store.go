package store

import (
	"context"

	"github.com/getpup/pupsourcing-hostselect"
)

// Registry is the read and cursor side of the service registry that host selection consumes.
// Implementations must be safe for concurrent access from multiple processes.
// Storage or transport failures must wrap hostselect.ErrRegistryUnavailable.
type Registry interface {
	// ListServices returns the records registered for a topic, ordered by host.
	// Disabled records are omitted unless includeDisabled is true.
	// Returns an empty slice if nothing is registered.
	ListServices(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error)

	// GetCursor returns the rotation cursor for a topic.
	// Returns hostselect.ErrCursorNotFound if the cursor has not been created.
	GetCursor(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error)

	// CreateCursorIfAbsent creates the rotation cursor with initialIndex.
	// An existing cursor is left untouched and no error is returned.
	CreateCursorIfAbsent(ctx context.Context, topic hostselect.Topic, initialIndex int) error

	// ConditionalUpdateCursor sets the cursor to newIndex only if it still holds expectedIndex.
	// Returns true if the update was committed, false if another writer got there first
	// or the cursor does not exist. A false result leaves the stored cursor unchanged.
	ConditionalUpdateCursor(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error)
}

// Registrar is the worker side of the registry: registration and heartbeats.
type Registrar interface {
	// RegisterService creates the record for topic and host, or refreshes its heartbeat
	// if it already exists. Returns the stored record.
	RegisterService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error)

	// Heartbeat updates the heartbeat time of a record.
	// Returns ErrServiceNotFound if the record does not exist.
	Heartbeat(ctx context.Context, topic hostselect.Topic, host string) error

	// SetDisabled enables or disables a record.
	// Returns ErrServiceNotFound if the record does not exist.
	SetDisabled(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error

	// RemoveService deletes a record.
	// Returns ErrServiceNotFound if the record does not exist.
	RemoveService(ctx context.Context, topic hostselect.Topic, host string) error
}

// Store combines both sides of the registry.
type Store interface {
	Registry
	Registrar
}
