package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/liveness"
	"github.com/getpup/pupsourcing-hostselect/metrics"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func record(host string, age time.Duration) hostselect.ServiceRecord {
	return hostselect.ServiceRecord{
		Topic:     hostselect.TopicVolume,
		Host:      host,
		UpdatedAt: testNow.Add(-age),
	}
}

func newTestResolver(mockStore *store.MockStore) *Resolver {
	return New(Config{
		Registry: mockStore,
		Liveness: liveness.NewHeartbeatWithClock(60*time.Second, func() time.Time { return testNow }),
	})
}

func listing(records ...hostselect.ServiceRecord) func(context.Context, hostselect.Topic, bool) ([]hostselect.ServiceRecord, error) {
	return func(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error) {
		return records, nil
	}
}

func TestResolveActiveHost_SingleLiveHost(t *testing.T) {
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = listing(record("vol-1", 5*time.Second))

	host, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	require.NoError(t, err)
	assert.Equal(t, "vol-1", host)
	require.Len(t, mockStore.ListServicesCalls, 1)
	assert.Equal(t, hostselect.TopicVolume, mockStore.ListServicesCalls[0].Topic)
	assert.False(t, mockStore.ListServicesCalls[0].IncludeDisabled, "disabled records must be excluded")
}

func TestResolveActiveHost_StaleRecordsAreIgnored(t *testing.T) {
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = listing(
		record("vol-1", 10*time.Minute),
		record("vol-2", 2*time.Second),
	)

	host, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	require.NoError(t, err)
	assert.Equal(t, "vol-2", host)
}

func TestResolveActiveHost_NoLiveHost(t *testing.T) {
	tests := []struct {
		name    string
		records []hostselect.ServiceRecord
	}{
		{"no records", nil},
		{"all stale", []hostselect.ServiceRecord{record("vol-1", 2*time.Minute), record("vol-2", time.Hour)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := store.NewMockStore()
			mockStore.ListServicesFunc = listing(tt.records...)

			_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

			assert.ErrorIs(t, err, hostselect.ErrNoActiveHost)
		})
	}
}

func TestResolveActiveHost_TwoLivePicksLaterHeartbeatRegardlessOfOrder(t *testing.T) {
	older := record("vol-a", 20*time.Second)
	newer := record("vol-b", 3*time.Second)

	for _, order := range [][]hostselect.ServiceRecord{{older, newer}, {newer, older}} {
		mockStore := store.NewMockStore()
		mockStore.ListServicesFunc = listing(order...)

		host, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

		require.NoError(t, err)
		assert.Equal(t, "vol-b", host)
	}
}

func TestResolveActiveHost_TwoLiveWithEqualHeartbeatIsAmbiguous(t *testing.T) {
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = listing(record("vol-a", 5*time.Second), record("vol-b", 5*time.Second))

	_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	assert.ErrorIs(t, err, hostselect.ErrAmbiguousActiveHost)
}

func TestResolveActiveHost_MoreThanTwoLiveIsAmbiguous(t *testing.T) {
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = listing(
		record("vol-a", 1*time.Second),
		record("vol-b", 2*time.Second),
		record("vol-c", 3*time.Second),
	)

	_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	assert.ErrorIs(t, err, hostselect.ErrAmbiguousActiveHost)
}

func TestResolveActiveHost_RegistryErrorPropagates(t *testing.T) {
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = func(ctx context.Context, topic hostselect.Topic, includeDisabled bool) ([]hostselect.ServiceRecord, error) {
		return nil, fmt.Errorf("connection refused: %w", hostselect.ErrRegistryUnavailable)
	}

	_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	require.Error(t, err)
	assert.ErrorIs(t, err, hostselect.ErrRegistryUnavailable)
	assert.False(t, errors.Is(err, hostselect.ErrNoActiveHost))
}

func TestResolveActiveHost_EmptyTopic(t *testing.T) {
	mockStore := store.NewMockStore()

	_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), "")

	assert.ErrorIs(t, err, hostselect.ErrEmptyTopic)
	assert.Empty(t, mockStore.ListServicesCalls)
}

func TestResolveActiveHost_ErrorNamesTopicAndOperation(t *testing.T) {
	mockStore := store.NewMockStore()

	_, err := newTestResolver(mockStore).ResolveActiveHost(context.Background(), hostselect.TopicVolume)

	require.Error(t, err)
	assert.Contains(t, err.Error(), OperationActiveHost)
	assert.Contains(t, err.Error(), `"volume"`)
}

func TestResolveActiveHost_RecordsMetrics(t *testing.T) {
	topic := hostselect.Topic("resolver-metrics")
	mockStore := store.NewMockStore()
	mockStore.ListServicesFunc = listing(record("vol-1", time.Second), record("vol-2", time.Second))

	r := New(Config{
		Registry:       mockStore,
		Liveness:       liveness.NewHeartbeatWithClock(time.Minute, func() time.Time { return testNow }),
		MetricsEnabled: true,
	})

	before := testutil.ToFloat64(metrics.SelectionsTotal.WithLabelValues(string(topic), OperationActiveHost, "ambiguous"))
	_, err := r.ResolveActiveHost(context.Background(), topic)
	require.Error(t, err)

	after := testutil.ToFloat64(metrics.SelectionsTotal.WithLabelValues(string(topic), OperationActiveHost, "ambiguous"))
	assert.Equal(t, before+1, after)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.LiveServices.WithLabelValues(string(topic))))
}

func TestNew_DefaultsLiveness(t *testing.T) {
	r := New(Config{Registry: store.NewMockStore()})

	require.NotNil(t, r.config.Liveness)
	hb, ok := r.config.Liveness.(*liveness.Heartbeat)
	require.True(t, ok)
	assert.Equal(t, liveness.DefaultStaleAfter, hb.StaleAfter())
}
