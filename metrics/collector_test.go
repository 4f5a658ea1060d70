package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewCollector_CreatesCollectorWithTopic(t *testing.T) {
	collector := NewCollector("test-topic")

	assert.NotNil(t, collector)
	assert.Equal(t, "test-topic", collector.topic)
}

func TestCollector_ObserveSelection(t *testing.T) {
	collector := NewCollector("test-topic-coll-1")

	successBefore := testutil.ToFloat64(SelectionsTotal.WithLabelValues("test-topic-coll-1", "next_host", "success"))
	ambiguousBefore := testutil.ToFloat64(SelectionsTotal.WithLabelValues("test-topic-coll-1", "next_host", "ambiguous"))

	collector.ObserveSelection("next_host", nil, 5*time.Millisecond)
	collector.ObserveSelection("next_host", hostselect.ErrAmbiguousActiveHost, time.Millisecond)

	assert.Equal(t, successBefore+1, testutil.ToFloat64(SelectionsTotal.WithLabelValues("test-topic-coll-1", "next_host", "success")))
	assert.Equal(t, ambiguousBefore+1, testutil.ToFloat64(SelectionsTotal.WithLabelValues("test-topic-coll-1", "next_host", "ambiguous")))
	assert.Greater(t, testutil.CollectAndCount(SelectionDuration), 0)
}

func TestCollector_IncCursorConflicts(t *testing.T) {
	collector := NewCollector("test-topic-coll-2")

	before := testutil.ToFloat64(CursorConflictsTotal.WithLabelValues("test-topic-coll-2"))
	collector.IncCursorConflicts()
	after := testutil.ToFloat64(CursorConflictsTotal.WithLabelValues("test-topic-coll-2"))

	assert.Equal(t, before+1, after)
}

func TestCollector_IncDeadHostSkips(t *testing.T) {
	collector := NewCollector("test-topic-coll-3")

	before := testutil.ToFloat64(DeadHostSkipsTotal.WithLabelValues("test-topic-coll-3"))
	collector.IncDeadHostSkips()
	after := testutil.ToFloat64(DeadHostSkipsTotal.WithLabelValues("test-topic-coll-3"))

	assert.Equal(t, before+1, after)
}

func TestCollector_SetLiveServices(t *testing.T) {
	collector := NewCollector("test-topic-coll-4")

	collector.SetLiveServices(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(LiveServices.WithLabelValues("test-topic-coll-4")))

	collector.SetLiveServices(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(LiveServices.WithLabelValues("test-topic-coll-4")))
}

func TestCollector_ObserveRotationAttempts(t *testing.T) {
	collector := NewCollector("test-topic-coll-5")

	collector.ObserveRotationAttempts(3)

	assert.Greater(t, testutil.CollectAndCount(RotationAttempts), 0)
}

func TestCollector_ObserveHeartbeat(t *testing.T) {
	collector := NewCollector("test-topic-coll-6")

	okBefore := testutil.ToFloat64(HeartbeatsTotal.WithLabelValues("test-topic-coll-6", "success"))
	errBefore := testutil.ToFloat64(HeartbeatsTotal.WithLabelValues("test-topic-coll-6", "error"))

	collector.ObserveHeartbeat(nil, time.Millisecond)
	collector.ObserveHeartbeat(errors.New("boom"), time.Millisecond)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(HeartbeatsTotal.WithLabelValues("test-topic-coll-6", "success")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(HeartbeatsTotal.WithLabelValues("test-topic-coll-6", "error")))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil", nil, OutcomeSuccess},
		{"no hosts", hostselect.ErrNoHostsRegistered, OutcomeNoHosts},
		{"no active host", fmt.Errorf("rotation exhausted: %w", hostselect.ErrNoActiveHost), OutcomeNoActiveHost},
		{"ambiguous", hostselect.ErrAmbiguousActiveHost, OutcomeAmbiguous},
		{"registry", fmt.Errorf("list: %w", hostselect.ErrRegistryUnavailable), OutcomeRegistryError},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), OutcomeCanceled},
		{"other", errors.New("boom"), OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
