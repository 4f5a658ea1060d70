package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken by the registry database.
type Dialect string

const (
	// Postgres speaks PostgreSQL through github.com/lib/pq.
	Postgres Dialect = "postgres"

	// MySQL speaks MySQL/MariaDB through github.com/go-sql-driver/mysql.
	MySQL Dialect = "mysql"

	// SQLite speaks SQLite through github.com/mattn/go-sqlite3.
	SQLite Dialect = "sqlite3"
)

// ParseDialect maps a driver or adapter name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported dialect %q: supported dialects are postgres, mysql, sqlite", name)
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	return string(d)
}

// rebind rewrites ? placeholders into the dialect's bind variable syntax.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertIgnore returns an INSERT statement that silently skips rows violating a unique key.
func (d Dialect) insertIgnore(table, columns, values, conflictColumns string) string {
	switch d {
	case MySQL:
		return fmt.Sprintf("INSERT IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	case SQLite:
		return fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)", table, columns, values)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO NOTHING", table, columns, values, conflictColumns)
	}
}

// upsertTouch returns an INSERT statement that, on a unique key conflict, only copies
// the touched column from the proposed row.
func (d Dialect) upsertTouch(table, columns, values, conflictColumns, touched string) string {
	switch d {
	case MySQL:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s = VALUES(%s)",
			table, columns, values, touched, touched)
	default:
		return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s",
			table, columns, values, conflictColumns, touched, touched)
	}
}
