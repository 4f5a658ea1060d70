package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/pupsourcing-hostselect"
	"github.com/getpup/pupsourcing-hostselect/store"
	"github.com/google/uuid"
)

const serviceColumns = "id, topic, host, disabled, updated_at, created_at"

// Store is a database/sql implementation of store.Store.
// The rotation cursor is only ever advanced by a single conditional UPDATE, so the
// store needs no transactions or row locks to stay consistent across processes.
type Store struct {
	db            *sql.DB
	dialect       Dialect
	servicesTable string
	cursorsTable  string
	now           func() time.Time
}

// New creates a new store with default table names.
func New(db *sql.DB, dialect Dialect) *Store {
	return NewWithConfig(db, dialect, DefaultTableConfig())
}

// NewWithConfig creates a new store with custom table names.
func NewWithConfig(db *sql.DB, dialect Dialect, config TableConfig) *Store {
	return &Store{
		db:            db,
		dialect:       dialect,
		servicesTable: config.ServicesTable,
		cursorsTable:  config.CursorsTable,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// ListServices returns the records registered for a topic, ordered by host.
func (s *Store) ListServices(ctx context.Context, topic hostselect.Topic, includeDisabled bool) (records []hostselect.ServiceRecord, err error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE topic = ?", serviceColumns, s.servicesTable)
	args := []interface{}{string(topic)}
	if !includeDisabled {
		query += " AND disabled = ?"
		args = append(args, false)
	}
	query += " ORDER BY host"

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, unavailable("failed to list services", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = unavailable("failed to close rows", closeErr)
		}
	}()

	records = []hostselect.ServiceRecord{}
	for rows.Next() {
		rec, err := scanService(rows)
		if err != nil {
			return nil, unavailable("failed to scan service", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, unavailable("error iterating services", err)
	}

	return records, nil
}

// GetCursor returns the rotation cursor for a topic.
// Returns hostselect.ErrCursorNotFound if the cursor has not been created.
func (s *Store) GetCursor(ctx context.Context, topic hostselect.Topic) (hostselect.RotationCursor, error) {
	query := fmt.Sprintf("SELECT topic, last_index, updated_at FROM %s WHERE topic = ?", s.cursorsTable)

	var cursor hostselect.RotationCursor
	var cursorTopic string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), string(topic)).Scan(
		&cursorTopic,
		&cursor.Index,
		&cursor.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return hostselect.RotationCursor{}, hostselect.ErrCursorNotFound
	}
	if err != nil {
		return hostselect.RotationCursor{}, unavailable("failed to get cursor", err)
	}

	cursor.Topic = hostselect.Topic(cursorTopic)
	return cursor, nil
}

// CreateCursorIfAbsent creates the rotation cursor unless one already exists.
func (s *Store) CreateCursorIfAbsent(ctx context.Context, topic hostselect.Topic, initialIndex int) error {
	query := s.dialect.insertIgnore(s.cursorsTable, "topic, last_index, updated_at", "?, ?, ?", "topic")

	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), string(topic), initialIndex, s.now()); err != nil {
		return unavailable("failed to create cursor", err)
	}

	return nil
}

// ConditionalUpdateCursor sets the cursor to newIndex only if it still holds expectedIndex.
// The outcome is decided by the affected row count of a single UPDATE.
func (s *Store) ConditionalUpdateCursor(ctx context.Context, topic hostselect.Topic, expectedIndex, newIndex int) (bool, error) {
	query := fmt.Sprintf(
		"UPDATE %s SET last_index = ?, updated_at = ? WHERE topic = ? AND last_index = ?",
		s.cursorsTable)

	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), newIndex, s.now(), string(topic), expectedIndex)
	if err != nil {
		return false, unavailable("failed to update cursor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, unavailable("failed to check rows affected", err)
	}

	return rowsAffected == 1, nil
}

// RegisterService creates the record for topic and host, or refreshes its heartbeat.
func (s *Store) RegisterService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error) {
	now := s.now()
	query := s.dialect.upsertTouch(s.servicesTable, serviceColumns, "?, ?, ?, ?, ?, ?", "topic, host", "updated_at")

	_, err := s.db.ExecContext(ctx, s.dialect.rebind(query),
		uuid.New().String(), string(topic), host, false, now, now)
	if err != nil {
		return hostselect.ServiceRecord{}, unavailable("failed to register service", err)
	}

	return s.getService(ctx, topic, host)
}

// Heartbeat updates the heartbeat time of a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) Heartbeat(ctx context.Context, topic hostselect.Topic, host string) error {
	query := fmt.Sprintf("UPDATE %s SET updated_at = ? WHERE topic = ? AND host = ?", s.servicesTable)

	return s.execOne(ctx, "failed to update heartbeat", query, s.now(), string(topic), host)
}

// SetDisabled enables or disables a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) SetDisabled(ctx context.Context, topic hostselect.Topic, host string, disabled bool) error {
	query := fmt.Sprintf("UPDATE %s SET disabled = ? WHERE topic = ? AND host = ?", s.servicesTable)

	return s.execOne(ctx, "failed to set disabled", query, disabled, string(topic), host)
}

// RemoveService deletes a record.
// Returns store.ErrServiceNotFound if the record does not exist.
func (s *Store) RemoveService(ctx context.Context, topic hostselect.Topic, host string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE topic = ? AND host = ?", s.servicesTable)

	return s.execOne(ctx, "failed to remove service", query, string(topic), host)
}

// RunMigrations creates the registry tables if they do not exist yet.
func (s *Store) RunMigrations(ctx context.Context) error {
	config := TableConfig{ServicesTable: s.servicesTable, CursorsTable: s.cursorsTable}
	for _, stmt := range MigrationStatements(s.dialect, config) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migrations: %w", err)
		}
	}

	return nil
}

func (s *Store) getService(ctx context.Context, topic hostselect.Topic, host string) (hostselect.ServiceRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE topic = ? AND host = ?", serviceColumns, s.servicesTable)

	rec, err := scanService(s.db.QueryRowContext(ctx, s.dialect.rebind(query), string(topic), host))
	if errors.Is(err, sql.ErrNoRows) {
		return hostselect.ServiceRecord{}, store.ErrServiceNotFound
	}
	if err != nil {
		return hostselect.ServiceRecord{}, unavailable("failed to get service", err)
	}

	return rec, nil
}

// execOne runs a statement that must touch exactly one service record.
func (s *Store) execOne(ctx context.Context, msg, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return unavailable(msg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return unavailable("failed to check rows affected", err)
	}

	if rowsAffected == 0 {
		return store.ErrServiceNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanService(row rowScanner) (hostselect.ServiceRecord, error) {
	var rec hostselect.ServiceRecord
	var topic string
	err := row.Scan(
		&rec.ID,
		&topic,
		&rec.Host,
		&rec.Disabled,
		&rec.UpdatedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return hostselect.ServiceRecord{}, err
	}

	rec.Topic = hostselect.Topic(topic)
	return rec, nil
}

func unavailable(msg string, err error) error {
	return fmt.Errorf("%s: %w: %w", msg, hostselect.ErrRegistryUnavailable, err)
}

var _ store.Store = (*Store)(nil)
