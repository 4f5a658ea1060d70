package hostselect

import (
	"sort"
	"time"
)

// Topic identifies a logical pool of services (for example "volume" or "backup").
type Topic string

const (
	// TopicVolume is the singleton-style volume management service.
	TopicVolume Topic = "volume"

	// TopicBackup is the pool of backup workers.
	TopicBackup Topic = "backup"
)

// ServiceRecord represents one registered worker instance.
// Records are created and refreshed by the workers themselves; selection only reads them.
type ServiceRecord struct {
	// ID is the unique identifier for this record (UUID).
	ID string

	// Topic is the pool this record belongs to.
	Topic Topic

	// Host identifies the instance. It is unique within a topic.
	Host string

	// Disabled records are excluded from every selection.
	Disabled bool

	// UpdatedAt is the time of the last heartbeat.
	UpdatedAt time.Time

	// CreatedAt is when the record was first registered.
	CreatedAt time.Time
}

// RotationCursor is the persisted round-robin position for a topic.
type RotationCursor struct {
	// Topic is the key of the cursor.
	Topic Topic

	// Index is the 1-based position in the sorted host list that was assigned last.
	// Zero means nothing has been assigned yet.
	Index int

	// UpdatedAt is when the cursor was last advanced.
	UpdatedAt time.Time
}

// SortByHost sorts records by Host in ascending order.
func SortByHost(records []ServiceRecord) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Host < records[j].Host
	})
}

// Hosts returns the host names of records, preserving order.
func Hosts(records []ServiceRecord) []string {
	hosts := make([]string, 0, len(records))
	for _, r := range records {
		hosts = append(hosts, r.Host)
	}
	return hosts
}
