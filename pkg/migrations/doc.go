// Package migrations generates SQL migration files for the host selection registry.
// It writes the service record and rotation cursor tables for PostgreSQL,
// MySQL/MariaDB, and SQLite, so the schema can be applied by an external
// migration tool instead of at application startup.
package migrations
