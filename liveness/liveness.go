// Package liveness decides whether a registered service is considered up.
package liveness

import (
	"time"

	"github.com/getpup/pupsourcing-hostselect"
)

// DefaultStaleAfter is how long a service may go without a heartbeat before it is considered down.
const DefaultStaleAfter = 60 * time.Second

// Checker reports whether a service record is live.
type Checker interface {
	IsLive(record hostselect.ServiceRecord) bool
}

// CheckerFunc adapts a plain function to the Checker interface.
type CheckerFunc func(record hostselect.ServiceRecord) bool

// IsLive implements Checker.
func (f CheckerFunc) IsLive(record hostselect.ServiceRecord) bool {
	return f(record)
}

// Heartbeat is the default Checker: a record is live while its last heartbeat
// is within staleAfter of the current time.
type Heartbeat struct {
	staleAfter time.Duration
	now        func() time.Time
}

// NewHeartbeat creates a heartbeat-based checker. A non-positive staleAfter uses DefaultStaleAfter.
func NewHeartbeat(staleAfter time.Duration) *Heartbeat {
	return NewHeartbeatWithClock(staleAfter, time.Now)
}

// NewHeartbeatWithClock creates a heartbeat-based checker reading time from now.
func NewHeartbeatWithClock(staleAfter time.Duration, now func() time.Time) *Heartbeat {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Heartbeat{staleAfter: staleAfter, now: now}
}

// StaleAfter returns the configured heartbeat threshold.
func (h *Heartbeat) StaleAfter() time.Duration {
	return h.staleAfter
}

// IsLive implements Checker.
// Clock skew is tolerated in both directions: a heartbeat slightly in the future is live.
func (h *Heartbeat) IsLive(record hostselect.ServiceRecord) bool {
	if record.UpdatedAt.IsZero() {
		return false
	}

	// Sub saturates for far-apart times, so compare against both bounds instead of negating.
	elapsed := h.now().Sub(record.UpdatedAt)
	return elapsed <= h.staleAfter && elapsed >= -h.staleAfter
}

// Filter returns the records the checker reports as live, preserving order.
func Filter(checker Checker, records []hostselect.ServiceRecord) []hostselect.ServiceRecord {
	live := make([]hostselect.ServiceRecord, 0, len(records))
	for _, r := range records {
		if checker.IsLive(r) {
			live = append(live, r)
		}
	}
	return live
}

var _ Checker = (*Heartbeat)(nil)
