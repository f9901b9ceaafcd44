// Package capturestore persists capture-completion events. It is a concrete
// downstream collaborator of the scanning core: it receives only the
// captured image bytes' metadata and the boundary-detected flag, and is
// otherwise opaque to the detection pipeline.
package capturestore

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// CaptureEvent is one completed still capture.
type CaptureEvent struct {
	ID               string  `json:"id"`
	SessionID        string  `json:"session_id"`
	CapturedAtNs     int64   `json:"captured_at_ns"`
	BoundaryDetected bool    `json:"boundary_detected"`
	Stability        float64 `json:"stability"`
	Trigger          string  `json:"trigger"`
	ByteSize         int     `json:"byte_size"`
}

// Store provides sqlite-backed persistence for capture events.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the capture-event database at path and
// applies any pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open capture store: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	// Note: we don't close m here because it would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Insert records a capture event. An empty ID is filled with a new UUID; a
// zero timestamp is filled with the current time.
func (s *Store) Insert(event *CaptureEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CapturedAtNs == 0 {
		event.CapturedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO capture_events (
			id, session_id, captured_at_ns, boundary_detected,
			stability, trigger_kind, byte_size
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		event.ID,
		event.SessionID,
		event.CapturedAtNs,
		event.BoundaryDetected,
		event.Stability,
		event.Trigger,
		event.ByteSize,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture event: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit capture events, newest first.
func (s *Store) RecentEvents(limit int) ([]CaptureEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, captured_at_ns, boundary_detected,
		       stability, trigger_kind, byte_size
		FROM capture_events
		ORDER BY captured_at_ns DESC
		LIMIT ?
	`
	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query capture events: %w", err)
	}
	defer rows.Close()

	events := make([]CaptureEvent, 0, limit)
	for rows.Next() {
		var e CaptureEvent
		if err := rows.Scan(
			&e.ID,
			&e.SessionID,
			&e.CapturedAtNs,
			&e.BoundaryDetected,
			&e.Stability,
			&e.Trigger,
			&e.ByteSize,
		); err != nil {
			return nil, fmt.Errorf("failed to scan capture event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountBySession returns the number of captures recorded for a session.
func (s *Store) CountBySession(sessionID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM capture_events WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count capture events: %w", err)
	}
	return count, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
