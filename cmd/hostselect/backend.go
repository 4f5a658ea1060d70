package main

import (
	"context"
	"fmt"

	"github.com/getpup/pupsourcing-hostselect/internal/config"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/getpup/pupsourcing-hostselect/store/memory"
	"github.com/getpup/pupsourcing-hostselect/store/pgxstore"
	"github.com/getpup/pupsourcing-hostselect/store/redisstore"
	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
	goredis "github.com/redis/go-redis/v9"
)

// backend bundles a registry store with the operations the CLI needs around it.
type backend struct {
	store   store.Store
	migrate func(ctx context.Context) error
	ping    func(ctx context.Context) error
	close   func() error
}

func noop(context.Context) error { return nil }

// openBackend connects the registry selected by cfg.Backend.
func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	tables := sqlstore.TableConfig{
		ServicesTable: cfg.Database.ServicesTable,
		CursorsTable:  cfg.Database.CursorsTable,
	}

	switch cfg.Backend {
	case config.BackendSQL:
		dialect, err := sqlstore.ParseDialect(cfg.Database.Dialect)
		if err != nil {
			return nil, err
		}
		db, err := sqlstore.Open(dialect, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		s := sqlstore.NewWithConfig(db, dialect, tables)
		return &backend{
			store:   s,
			migrate: s.RunMigrations,
			ping:    db.PingContext,
			close:   db.Close,
		}, nil

	case config.BackendPgx:
		pool, err := pgxstore.Connect(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		s := pgxstore.NewWithConfig(pool, tables)
		return &backend{
			store:   s,
			migrate: s.RunMigrations,
			ping:    pool.Ping,
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := redisstore.New(client, redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
		return &backend{
			store:   s,
			migrate: noop,
			ping:    s.Ping,
			close:   client.Close,
		}, nil

	case config.BackendMemory:
		return &backend{
			store:   memory.New(),
			migrate: noop,
			ping:    noop,
			close:   func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
