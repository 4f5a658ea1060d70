package migrations

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getpup/pupsourcing-hostselect/store/sqlstore"
	_ "github.com/mattn/go-sqlite3"
)

func testConfig(dir string) Config {
	return Config{
		OutputFolder:   dir,
		OutputFilename: "test_migration.sql",
		ServicesTable:  "hostselect_services",
		CursorsTable:   "hostselect_rotation_cursors",
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read generated file: %v", err)
	}
	return string(content)
}

func TestGeneratePostgres(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GeneratePostgres(&config); err != nil {
		t.Fatalf("GeneratePostgres failed: %v", err)
	}

	sql := readFile(t, filepath.Join(tmpDir, config.OutputFilename))

	required := []string{
		"-- Database: PostgreSQL",
		"CREATE TABLE IF NOT EXISTS hostselect_services",
		"id UUID PRIMARY KEY",
		"UNIQUE (topic, host)",
		"updated_at TIMESTAMPTZ NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_hostselect_services_topic_disabled",
		"CREATE TABLE IF NOT EXISTS hostselect_rotation_cursors",
		"last_index INTEGER NOT NULL DEFAULT 0",
	}
	for _, s := range required {
		if !strings.Contains(sql, s) {
			t.Errorf("postgres migration missing required string: %s", s)
		}
	}

	if _, err := os.Stat(filepath.Join(tmpDir, DownFilename(config.OutputFilename))); !os.IsNotExist(err) {
		t.Error("down migration should not be written unless WithDown is set")
	}
}

func TestGenerateMySQL(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GenerateMySQL(&config); err != nil {
		t.Fatalf("GenerateMySQL failed: %v", err)
	}

	sql := readFile(t, filepath.Join(tmpDir, config.OutputFilename))

	required := []string{
		"-- Database: MySQL/MariaDB",
		"id VARCHAR(36) PRIMARY KEY",
		"UNIQUE KEY uq_hostselect_services_topic_host (topic, host)",
		"updated_at DATETIME(6) NOT NULL",
		"ENGINE=InnoDB",
		"topic VARCHAR(255) PRIMARY KEY",
	}
	for _, s := range required {
		if !strings.Contains(sql, s) {
			t.Errorf("mysql migration missing required string: %s", s)
		}
	}
}

func TestGenerateSQLite(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	sql := readFile(t, filepath.Join(tmpDir, config.OutputFilename))

	if !strings.Contains(sql, "-- Database: SQLite") {
		t.Error("Missing database header")
	}
	if strings.Contains(sql, "ENGINE=InnoDB") || strings.Contains(sql, "TIMESTAMPTZ") {
		t.Error("SQLite migration contains syntax of another dialect")
	}
}

func TestGenerateSQLite_FileAppliesCleanly(t *testing.T) {
	tmpDir := t.TempDir()
	config := testConfig(tmpDir)
	config.WithDown = true

	if err := GenerateSQLite(&config); err != nil {
		t.Fatalf("GenerateSQLite failed: %v", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(tmpDir, "apply.db"))
	if err != nil {
		t.Fatalf("Failed to open SQLite: %v", err)
	}
	defer db.Close()

	up := readFile(t, filepath.Join(tmpDir, config.OutputFilename))
	for i := 0; i < 2; i++ {
		if _, err := db.Exec(up); err != nil {
			t.Fatalf("Failed to apply up migration (run %d): %v", i+1, err)
		}
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('hostselect_services', 'hostselect_rotation_cursors')").Scan(&count); err != nil {
		t.Fatalf("Failed to inspect schema: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 registry tables, got %d", count)
	}

	down := readFile(t, filepath.Join(tmpDir, DownFilename(config.OutputFilename)))
	if _, err := db.Exec(down); err != nil {
		t.Fatalf("Failed to apply down migration: %v", err)
	}
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name LIKE 'hostselect_%'").Scan(&count); err != nil {
		t.Fatalf("Failed to inspect schema: %v", err)
	}
	if count != 0 {
		t.Errorf("expected registry tables to be dropped, %d left", count)
	}
}

func TestGenerate_CustomNames(t *testing.T) {
	tmpDir := t.TempDir()
	config := Config{
		OutputFolder:   filepath.Join(tmpDir, "nested", "dir"),
		OutputFilename: "custom.sql",
		ServicesTable:  "my_services",
		CursorsTable:   "my_cursors",
		WithDown:       true,
	}

	if err := Generate(sqlstore.Postgres, &config); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	up := readFile(t, filepath.Join(config.OutputFolder, "custom.sql"))
	if !strings.Contains(up, "CREATE TABLE IF NOT EXISTS my_services") {
		t.Error("Missing custom services table")
	}
	if !strings.Contains(up, "CREATE TABLE IF NOT EXISTS my_cursors") {
		t.Error("Missing custom cursors table")
	}
	if strings.Contains(up, "hostselect_services") {
		t.Error("Default table name leaked into custom migration")
	}

	down := readFile(t, filepath.Join(config.OutputFolder, "custom.down.sql"))
	if !strings.Contains(down, "DROP TABLE IF EXISTS my_cursors") || !strings.Contains(down, "DROP TABLE IF EXISTS my_services") {
		t.Errorf("down migration does not drop custom tables: %s", down)
	}
}

func TestGenerate_RejectsUnsafeIdentifiers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty services table", func(c *Config) { c.ServicesTable = "" }, "ServicesTable cannot be empty"},
		{"injection in cursors table", func(c *Config) { c.CursorsTable = "x; DROP TABLE y" }, "CursorsTable must start with a letter"},
		{"leading digit", func(c *Config) { c.ServicesTable = "1services" }, "ServicesTable must start with a letter"},
		{"same names", func(c *Config) { c.CursorsTable = c.ServicesTable }, "must differ"},
		{"no filename", func(c *Config) { c.OutputFilename = "" }, "OutputFilename cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testConfig(t.TempDir())
			tt.mutate(&config)

			err := GenerateSQLite(&config)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.OutputFolder != "migrations" {
		t.Errorf("unexpected OutputFolder: %s", config.OutputFolder)
	}
	if !strings.HasSuffix(config.OutputFilename, "_init_hostselect_registry.sql") {
		t.Errorf("unexpected OutputFilename: %s", config.OutputFilename)
	}
	if config.ServicesTable != "hostselect_services" || config.CursorsTable != "hostselect_rotation_cursors" {
		t.Errorf("unexpected table names: %s, %s", config.ServicesTable, config.CursorsTable)
	}
	if err := validateConfig(&config); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDownFilename(t *testing.T) {
	if got := DownFilename("001_init.sql"); got != "001_init.down.sql" {
		t.Errorf("DownFilename = %s", got)
	}
	if got := DownFilename("001_init"); got != "001_init.down.sql" {
		t.Errorf("DownFilename = %s", got)
	}
}
