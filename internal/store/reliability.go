// Package store persists planner reliability scores across restarts in a
// local SQLite database. Persistence is best-effort: the factory logs store
// failures and carries on with in-memory state.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"overmind/internal/logging"
)

// ReliabilityRecord is one persisted planner row.
type ReliabilityRecord struct {
	Name                string
	Reliability         float64
	ConsecutiveFailures int
	Quarantined         bool
	UpdatedAt           time.Time
}

// ReliabilityStore manages the reliability database.
type ReliabilityStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Open creates or opens a reliability store at the given path.
func Open(dbPath string) (*ReliabilityStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &ReliabilityStore{
		db:     db,
		dbPath: dbPath,
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Store("reliability store opened: %s", dbPath)
	return s, nil
}

// Close closes the database connection.
func (s *ReliabilityStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *ReliabilityStore) Path() string {
	return s.dbPath
}

// initSchema creates the database schema.
func (s *ReliabilityStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS planner_reliability (
		name TEXT PRIMARY KEY,
		reliability REAL NOT NULL,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		quarantined INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save upserts one planner's reliability state.
func (s *ReliabilityStore) Save(rec ReliabilityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quarantined := 0
	if rec.Quarantined {
		quarantined = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO planner_reliability (name, reliability, consecutive_failures, quarantined, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			reliability = excluded.reliability,
			consecutive_failures = excluded.consecutive_failures,
			quarantined = excluded.quarantined,
			updated_at = excluded.updated_at`,
		rec.Name, rec.Reliability, rec.ConsecutiveFailures, quarantined, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save reliability for %s: %w", rec.Name, err)
	}
	return nil
}

// Get returns the persisted record for a planner, or ok=false if absent.
func (s *ReliabilityStore) Get(name string) (ReliabilityRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec ReliabilityRecord
	var quarantined int
	err := s.db.QueryRow(`
		SELECT name, reliability, consecutive_failures, quarantined, updated_at
		FROM planner_reliability WHERE name = ?`, name).
		Scan(&rec.Name, &rec.Reliability, &rec.ConsecutiveFailures, &quarantined, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return ReliabilityRecord{}, false, nil
	}
	if err != nil {
		return ReliabilityRecord{}, false, fmt.Errorf("failed to load reliability for %s: %w", name, err)
	}
	rec.Quarantined = quarantined != 0
	return rec, true, nil
}

// All returns every persisted record keyed by planner name.
func (s *ReliabilityStore) All() (map[string]ReliabilityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT name, reliability, consecutive_failures, quarantined, updated_at
		FROM planner_reliability`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reliability records: %w", err)
	}
	defer rows.Close()

	records := make(map[string]ReliabilityRecord)
	for rows.Next() {
		var rec ReliabilityRecord
		var quarantined int
		if err := rows.Scan(&rec.Name, &rec.Reliability, &rec.ConsecutiveFailures, &quarantined, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan reliability record: %w", err)
		}
		rec.Quarantined = quarantined != 0
		records[rec.Name] = rec
	}
	return records, rows.Err()
}

// Delete removes a planner's persisted state.
func (s *ReliabilityStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM planner_reliability WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete reliability for %s: %w", name, err)
	}
	return nil
}
