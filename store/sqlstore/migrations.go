package sqlstore

import (
	"fmt"
	"strings"
)

// TableConfig configures the table names used by the registry.
type TableConfig struct {
	// ServicesTable is the name of the table storing service records.
	ServicesTable string

	// CursorsTable is the name of the table storing rotation cursors.
	CursorsTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		ServicesTable: "hostselect_services",
		CursorsTable:  "hostselect_rotation_cursors",
	}
}

// MigrationStatements returns the DDL statements that create the registry tables,
// one statement per element so drivers without multi-statement support can run them.
// Every statement is idempotent.
func MigrationStatements(dialect Dialect, config TableConfig) []string {
	switch dialect {
	case MySQL:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id VARCHAR(36) PRIMARY KEY,
    topic VARCHAR(255) NOT NULL,
    host VARCHAR(255) NOT NULL,
    disabled BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at DATETIME(6) NOT NULL,
    created_at DATETIME(6) NOT NULL,
    UNIQUE KEY uq_%s_topic_host (topic, host),
    KEY idx_%s_topic_disabled (topic, disabled)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
				config.ServicesTable, config.ServicesTable, config.ServicesTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    topic VARCHAR(255) PRIMARY KEY,
    last_index INT NOT NULL DEFAULT 0,
    updated_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
				config.CursorsTable),
		}
	case SQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id TEXT PRIMARY KEY,
    topic TEXT NOT NULL,
    host TEXT NOT NULL,
    disabled BOOLEAN NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (topic, host)
)`, config.ServicesTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_topic_disabled ON %s (topic, disabled)`,
				config.ServicesTable, config.ServicesTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    topic TEXT PRIMARY KEY,
    last_index INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
)`, config.CursorsTable),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id UUID PRIMARY KEY,
    topic TEXT NOT NULL,
    host TEXT NOT NULL,
    disabled BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    UNIQUE (topic, host)
)`, config.ServicesTable),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_topic_disabled ON %s (topic, disabled)`,
				config.ServicesTable, config.ServicesTable),
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    topic TEXT PRIMARY KEY,
    last_index INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL
)`, config.CursorsTable),
		}
	}
}

// MigrationUp returns the SQL script that creates the registry tables.
func MigrationUp(dialect Dialect, config TableConfig) string {
	return strings.Join(MigrationStatements(dialect, config), ";\n\n") + ";\n"
}

// MigrationDown returns the SQL script that drops the registry tables.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf(`DROP TABLE IF EXISTS %s;

DROP TABLE IF EXISTS %s;
`, config.CursorsTable, config.ServicesTable)
}
