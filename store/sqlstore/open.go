package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens a connection pool for the given dialect.
//
// MySQL DSNs are adjusted so the store works as intended: parseTime is enabled so
// DATETIME columns scan into time.Time, and clientFoundRows is enabled so an UPDATE
// that matches a row but leaves its values unchanged still reports one affected row.
// SQLite pools are limited to a single connection because SQLite serializes writers.
func Open(dialect Dialect, dsn string) (*sql.DB, error) {
	switch dialect {
	case MySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.ClientFoundRows = true
		cfg.Loc = time.UTC

		connector, err := mysql.NewConnector(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create mysql connector: %w", err)
		}
		return sql.OpenDB(connector), nil

	case SQLite:
		db, err := sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		db.SetMaxOpenConns(1)
		return db, nil

	case Postgres:
		db, err := sql.Open(dialect.DriverName(), dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres database: %w", err)
		}
		return db, nil

	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}
