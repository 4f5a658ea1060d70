package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteStore returns a store backed by a fresh SQLite database file.
func newSQLiteStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()

	db, err := Open(SQLite, filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(db, SQLite)
	require.NoError(t, s.RunMigrations(context.Background()))

	return s, db
}

func TestSQLiteStore_RegisterService(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	registeredAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return registeredAt }

	rec, err := s.RegisterService(ctx, hostselect.TopicBackup, "backup-1")

	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, hostselect.TopicBackup, rec.Topic)
	assert.Equal(t, "backup-1", rec.Host)
	assert.False(t, rec.Disabled)
	assert.True(t, rec.UpdatedAt.Equal(registeredAt), "updated_at should round-trip")
	assert.True(t, rec.CreatedAt.Equal(registeredAt), "created_at should round-trip")
}

func TestSQLiteStore_RegisterServiceTwiceRefreshesHeartbeat(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	first := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return first }

	original, err := s.RegisterService(ctx, hostselect.TopicBackup, "backup-1")
	require.NoError(t, err)

	second := first.Add(time.Minute)
	s.now = func() time.Time { return second }
	refreshed, err := s.RegisterService(ctx, hostselect.TopicBackup, "backup-1")
	require.NoError(t, err)

	assert.Equal(t, original.ID, refreshed.ID)
	assert.True(t, refreshed.CreatedAt.Equal(first))
	assert.True(t, refreshed.UpdatedAt.Equal(second))
}

func TestSQLiteStore_ListServices(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	for _, host := range []string{"h3", "h1", "h2"} {
		_, err := s.RegisterService(ctx, hostselect.TopicBackup, host)
		require.NoError(t, err)
	}
	_, err := s.RegisterService(ctx, hostselect.TopicVolume, "vol-1")
	require.NoError(t, err)
	require.NoError(t, s.SetDisabled(ctx, hostselect.TopicBackup, "h2", true))

	t.Run("ordered by host without disabled records", func(t *testing.T) {
		records, err := s.ListServices(ctx, hostselect.TopicBackup, false)
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h3"}, hostselect.Hosts(records))
	})

	t.Run("includeDisabled returns every record of the topic", func(t *testing.T) {
		records, err := s.ListServices(ctx, hostselect.TopicBackup, true)
		require.NoError(t, err)
		assert.Equal(t, []string{"h1", "h2", "h3"}, hostselect.Hosts(records))
		assert.True(t, records[1].Disabled)
	})

	t.Run("unknown topic returns an empty slice", func(t *testing.T) {
		records, err := s.ListServices(ctx, hostselect.Topic("scheduler"), false)
		require.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})
}

func TestSQLiteStore_Heartbeat(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.now = func() time.Time { return start }

	_, err := s.RegisterService(ctx, hostselect.TopicVolume, "vol-1")
	require.NoError(t, err)

	later := start.Add(45 * time.Second)
	s.now = func() time.Time { return later }
	require.NoError(t, s.Heartbeat(ctx, hostselect.TopicVolume, "vol-1"))

	records, err := s.ListServices(ctx, hostselect.TopicVolume, false)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].UpdatedAt.Equal(later))
}

func TestSQLiteStore_RemoveService(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	_, err := s.RegisterService(ctx, hostselect.TopicVolume, "vol-1")
	require.NoError(t, err)
	require.NoError(t, s.RemoveService(ctx, hostselect.TopicVolume, "vol-1"))

	records, err := s.ListServices(ctx, hostselect.TopicVolume, true)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSQLiteStore_Cursor(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	t.Run("missing cursor returns ErrCursorNotFound", func(t *testing.T) {
		_, err := s.GetCursor(ctx, hostselect.TopicBackup)
		assert.ErrorIs(t, err, hostselect.ErrCursorNotFound)
	})

	t.Run("create then read", func(t *testing.T) {
		require.NoError(t, s.CreateCursorIfAbsent(ctx, hostselect.TopicBackup, 0))

		cursor, err := s.GetCursor(ctx, hostselect.TopicBackup)
		require.NoError(t, err)
		assert.Equal(t, hostselect.TopicBackup, cursor.Topic)
		assert.Equal(t, 0, cursor.Index)
	})

	t.Run("conditional update commits on match", func(t *testing.T) {
		ok, err := s.ConditionalUpdateCursor(ctx, hostselect.TopicBackup, 0, 1)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("conditional update with stale expectation is a no-op", func(t *testing.T) {
		ok, err := s.ConditionalUpdateCursor(ctx, hostselect.TopicBackup, 0, 2)
		require.NoError(t, err)
		assert.False(t, ok)

		cursor, err := s.GetCursor(ctx, hostselect.TopicBackup)
		require.NoError(t, err)
		assert.Equal(t, 1, cursor.Index)
	})

	t.Run("create is idempotent and never overwrites", func(t *testing.T) {
		require.NoError(t, s.CreateCursorIfAbsent(ctx, hostselect.TopicBackup, 0))

		cursor, err := s.GetCursor(ctx, hostselect.TopicBackup)
		require.NoError(t, err)
		assert.Equal(t, 1, cursor.Index)
	})

	t.Run("conditional update of a missing cursor does not commit", func(t *testing.T) {
		ok, err := s.ConditionalUpdateCursor(ctx, hostselect.Topic("scheduler"), 0, 1)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSQLiteStore_ConcurrentConditionalUpdates(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreateCursorIfAbsent(ctx, hostselect.TopicBackup, 0))

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.ConditionalUpdateCursor(ctx, hostselect.TopicBackup, 0, 1)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestSQLiteStore_ErrorCases(t *testing.T) {
	s, _ := newSQLiteStore(t)
	ctx := context.Background()

	t.Run("Heartbeat with unknown host returns ErrServiceNotFound", func(t *testing.T) {
		err := s.Heartbeat(ctx, hostselect.TopicBackup, "missing")
		assert.ErrorIs(t, err, store.ErrServiceNotFound)
	})

	t.Run("SetDisabled with unknown host returns ErrServiceNotFound", func(t *testing.T) {
		err := s.SetDisabled(ctx, hostselect.TopicBackup, "missing", true)
		assert.ErrorIs(t, err, store.ErrServiceNotFound)
	})

	t.Run("RemoveService with unknown host returns ErrServiceNotFound", func(t *testing.T) {
		err := s.RemoveService(ctx, hostselect.TopicBackup, "missing")
		assert.ErrorIs(t, err, store.ErrServiceNotFound)
	})
}

func TestSQLiteStore_ClosedDatabaseReportsRegistryUnavailable(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, db.Close())

	_, err := s.ListServices(ctx, hostselect.TopicBackup, false)
	assert.ErrorIs(t, err, hostselect.ErrRegistryUnavailable)

	_, err = s.GetCursor(ctx, hostselect.TopicBackup)
	assert.ErrorIs(t, err, hostselect.ErrRegistryUnavailable)

	_, err = s.ConditionalUpdateCursor(ctx, hostselect.TopicBackup, 0, 1)
	assert.ErrorIs(t, err, hostselect.ErrRegistryUnavailable)

	err = s.CreateCursorIfAbsent(ctx, hostselect.TopicBackup, 0)
	assert.ErrorIs(t, err, hostselect.ErrRegistryUnavailable)
}

func TestSQLiteStore_CustomTableNames(t *testing.T) {
	db, err := Open(SQLite, filepath.Join(t.TempDir(), "custom.db"))
	require.NoError(t, err)
	defer db.Close()

	s := NewWithConfig(db, SQLite, TableConfig{
		ServicesTable: "custom_services",
		CursorsTable:  "custom_cursors",
	})
	ctx := context.Background()
	require.NoError(t, s.RunMigrations(ctx))
	require.NoError(t, s.RunMigrations(ctx), "migrations must be re-runnable")

	_, err = s.RegisterService(ctx, hostselect.TopicBackup, "h1")
	require.NoError(t, err)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM custom_services").Scan(&count))
	assert.Equal(t, 1, count)
}
