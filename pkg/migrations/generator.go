package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures an identifier contains only safe characters for SQL.
// Returns an error if the identifier contains characters that could be used for SQL injection.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// validateConfig validates all configuration values to prevent SQL injection.
func validateConfig(config *Config) error {
	if err := validateIdentifier(config.ServicesTable, "ServicesTable"); err != nil {
		return err
	}
	if err := validateIdentifier(config.CursorsTable, "CursorsTable"); err != nil {
		return err
	}
	if config.ServicesTable == config.CursorsTable {
		return fmt.Errorf("ServicesTable and CursorsTable must differ (got: %s)", config.ServicesTable)
	}
	return nil
}

// Config configures migration generation for the registry tables.
type Config struct {
	// OutputFolder is the directory where the migration files will be written
	OutputFolder string

	// OutputFilename is the name of the up migration file
	OutputFilename string

	// ServicesTable is the name of the service records table
	ServicesTable string

	// CursorsTable is the name of the rotation cursors table
	CursorsTable string

	// WithDown also writes a matching down migration next to the up file,
	// named after OutputFilename with ".down.sql" in place of ".sql"
	WithDown bool
}

// DefaultConfig returns the default configuration for registry migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	tables := sqlstore.DefaultTableConfig()
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_hostselect_registry.sql", timestamp),
		ServicesTable:  tables.ServicesTable,
		CursorsTable:   tables.CursorsTable,
	}
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return Generate(sqlstore.Postgres, config)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	return Generate(sqlstore.MySQL, config)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return Generate(sqlstore.SQLite, config)
}

// Generate writes the migration file for dialect into config.OutputFolder.
func Generate(dialect sqlstore.Dialect, config *Config) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.OutputFilename == "" {
		return fmt.Errorf("invalid configuration: OutputFilename cannot be empty")
	}

	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(generateUpSQL(dialect, config)), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}

	if config.WithDown {
		downPath := filepath.Join(config.OutputFolder, DownFilename(config.OutputFilename))
		if err := os.WriteFile(downPath, []byte(generateDownSQL(dialect, config)), 0o600); err != nil {
			return fmt.Errorf("failed to write down migration file: %w", err)
		}
	}

	return nil
}

// DownFilename derives the down migration name from an up migration name.
func DownFilename(upFilename string) string {
	return strings.TrimSuffix(upFilename, ".sql") + ".down.sql"
}

func tableConfig(config *Config) sqlstore.TableConfig {
	return sqlstore.TableConfig{
		ServicesTable: config.ServicesTable,
		CursorsTable:  config.CursorsTable,
	}
}

func generateUpSQL(dialect sqlstore.Dialect, config *Config) string {
	return fmt.Sprintf(`-- Host Selection Registry Migration
-- Generated: %s
-- Database: %s

-- %s holds one row per (topic, host), refreshed by worker heartbeats.
-- %s holds the round-robin position per topic, advanced only by
-- compare-and-swap on last_index.

%s`,
		time.Now().Format(time.RFC3339),
		databaseName(dialect),
		config.ServicesTable,
		config.CursorsTable,
		sqlstore.MigrationUp(dialect, tableConfig(config)),
	)
}

func generateDownSQL(dialect sqlstore.Dialect, config *Config) string {
	return fmt.Sprintf(`-- Host Selection Registry Rollback
-- Generated: %s
-- Database: %s

%s`,
		time.Now().Format(time.RFC3339),
		databaseName(dialect),
		sqlstore.MigrationDown(tableConfig(config)),
	)
}

func databaseName(dialect sqlstore.Dialect) string {
	switch dialect {
	case sqlstore.MySQL:
		return "MySQL/MariaDB"
	case sqlstore.SQLite:
		return "SQLite"
	default:
		return "PostgreSQL"
	}
}
