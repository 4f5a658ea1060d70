package metrics

import (
	"time"
)

// Collector wraps metrics and provides helper methods with the topic label pre-filled.
type Collector struct {
	topic string
}

// NewCollector creates a new Collector for the given topic.
func NewCollector(topic string) *Collector {
	return &Collector{topic: topic}
}

// ObserveSelection records the outcome and latency of a selection operation.
func (c *Collector) ObserveSelection(operation string, err error, elapsed time.Duration) {
	SelectionsTotal.WithLabelValues(c.topic, operation, string(Classify(err))).Inc()
	SelectionDuration.WithLabelValues(c.topic, operation).Observe(elapsed.Seconds())
}

// IncCursorConflicts increments the cursor conflicts counter.
func (c *Collector) IncCursorConflicts() {
	CursorConflictsTotal.WithLabelValues(c.topic).Inc()
}

// IncDeadHostSkips increments the dead host skips counter.
func (c *Collector) IncDeadHostSkips() {
	DeadHostSkipsTotal.WithLabelValues(c.topic).Inc()
}

// ObserveRotationAttempts records how many attempts a rotation call consumed.
func (c *Collector) ObserveRotationAttempts(attempts int) {
	RotationAttempts.WithLabelValues(c.topic).Observe(float64(attempts))
}

// SetLiveServices sets the live services gauge.
func (c *Collector) SetLiveServices(count int) {
	LiveServices.WithLabelValues(c.topic).Set(float64(count))
}

// ObserveHeartbeat records the outcome and latency of a heartbeat.
func (c *Collector) ObserveHeartbeat(err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	HeartbeatsTotal.WithLabelValues(c.topic, string(outcome)).Inc()
	HeartbeatLatency.WithLabelValues(c.topic).Observe(elapsed.Seconds())
}
