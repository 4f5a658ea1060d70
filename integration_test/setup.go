//go:build integration

package integration_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing-hostselect/store/pgxstore"
	"github.com/getpup/pupsourcing-hostselect/store/redisstore"
	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
	goredis "github.com/redis/go-redis/v9"
)

// integrationTables keeps test data away from the default tables of a shared database.
var integrationTables = sqlstore.TableConfig{
	ServicesTable: "hostselect_it_services",
	CursorsTable:  "hostselect_it_cursors",
}

// backendFactory opens a fresh, empty registry or skips the test.
type backendFactory func(t *testing.T) store.Store

// backends lists every registry implementation the suite runs against.
var backends = map[string]backendFactory{
	"postgres-sql": func(t *testing.T) store.Store {
		return openSQL(t, sqlstore.Postgres, requireEnv(t, "DATABASE_URL"))
	},
	"mysql-sql": func(t *testing.T) store.Store {
		return openSQL(t, sqlstore.MySQL, requireEnv(t, "MYSQL_DSN"))
	},
	"postgres-pgx": openPgx,
	"redis":        openRedis,
}

func requireEnv(t *testing.T, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set, skipping integration test", key)
	}
	return value
}

func openSQL(t *testing.T, dialect sqlstore.Dialect, dsn string) store.Store {
	t.Helper()

	db, err := sqlstore.Open(dialect, dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	resetSQLTables(t, db)
	s := sqlstore.NewWithConfig(db, dialect, integrationTables)
	if err := s.RunMigrations(context.Background()); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return s
}

// resetSQLTables drops the integration tables so every test starts empty.
func resetSQLTables(t *testing.T, db *sql.DB) {
	t.Helper()
	for _, table := range []string{integrationTables.CursorsTable, integrationTables.ServicesTable} {
		if _, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			t.Fatalf("failed to drop %s: %v", table, err)
		}
	}
}

func openPgx(t *testing.T) store.Store {
	t.Helper()
	dsn := requireEnv(t, "DATABASE_URL")
	ctx := context.Background()

	pool, err := pgxstore.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, table := range []string{integrationTables.CursorsTable, integrationTables.ServicesTable} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			t.Fatalf("failed to drop %s: %v", table, err)
		}
	}

	s := pgxstore.NewWithConfig(pool, integrationTables)
	if err := s.RunMigrations(ctx); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return s
}

func openRedis(t *testing.T) store.Store {
	t.Helper()
	addr := requireEnv(t, "REDIS_ADDR")
	ctx := context.Background()

	client := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	prefix := "hostselect-it:"
	keys, err := client.Keys(ctx, prefix+"*").Result()
	if err != nil {
		t.Fatalf("failed to list keys: %v", err)
	}
	if len(keys) > 0 {
		if err := client.Del(ctx, keys...).Err(); err != nil {
			t.Fatalf("failed to clear keys: %v", err)
		}
	}

	s := redisstore.New(client, redisstore.WithKeyPrefix(prefix))
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("failed to ping redis: %v", err)
	}
	return s
}

// forEachBackend runs fn as a subtest against every configured backend.
func forEachBackend(t *testing.T, fn func(t *testing.T, s store.Store)) {
	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			fn(t, open(t))
		})
	}
}
