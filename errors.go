package hostselect

import "errors"

var (
	// ErrNoHostsRegistered indicates the topic has no eligible (non-disabled) service records.
	ErrNoHostsRegistered = errors.New("no hosts registered")

	// ErrNoActiveHost indicates no live candidate was found for the topic.
	// The rotation assigner also returns it once its attempt budget is spent.
	ErrNoActiveHost = errors.New("no active host")

	// ErrAmbiguousActiveHost indicates two or more equally eligible live candidates.
	// Picking one of them could run the same work on two hosts, so it is never guessed.
	ErrAmbiguousActiveHost = errors.New("ambiguous active host")

	// ErrRegistryUnavailable marks transport or storage failures of the registry.
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrCursorNotFound indicates no rotation cursor exists for the topic yet.
	ErrCursorNotFound = errors.New("rotation cursor not found")

	// ErrEmptyTopic indicates an operation was called without a topic.
	ErrEmptyTopic = errors.New("topic is required")
)
