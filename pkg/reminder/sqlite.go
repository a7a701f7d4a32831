package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore reads medication schedules from the shared companion
// database. The CRUD collaborator writes this table; the core never does.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the schedule database read-mostly, creating the table
// if a fresh database path was given.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS medication_schedule (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			medication_name TEXT NOT NULL,
			time TEXT NOT NULL,
			days TEXT,
			enabled INTEGER DEFAULT 1
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Schedules returns every medication schedule. Rows mutated mid-read are
// eventually consistent; a torn read costs at most one tick of delay.
func (s *SQLiteStore) Schedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, medication_name, time, days, enabled
		FROM medication_schedule
	`)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		var (
			id      int64
			name    string
			at      string
			days    sql.NullString
			enabled int
		)
		if err := rows.Scan(&id, &name, &at, &days, &enabled); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		sched := Schedule{
			ID:      "med-" + strconv.FormatInt(id, 10),
			Kind:    KindMedication,
			Name:    name,
			At:      at,
			Enabled: enabled != 0,
		}
		if days.Valid {
			sched.Days = parseDays(days.String)
		}
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

// parseDays decodes "0,2,4" (0=Monday, matching the collaborator's
// weekday convention) into Go weekdays. Unparseable entries are skipped.
func parseDays(s string) []time.Weekday {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 || n > 6 {
			continue
		}
		days = append(days, time.Weekday((n+1)%7))
	}
	return days
}

// StaticStore serves a fixed schedule set, for tests and for running
// without a database.
type StaticStore struct {
	schedules []Schedule
}

// NewStaticStore creates a store over the given schedules.
func NewStaticStore(schedules ...Schedule) *StaticStore {
	return &StaticStore{schedules: schedules}
}

func (s *StaticStore) Schedules(ctx context.Context) ([]Schedule, error) {
	out := make([]Schedule, len(s.schedules))
	copy(out, s.schedules)
	return out, nil
}

// MultiStore concatenates the schedule sets of several stores, so built-in
// schedules can ride alongside the database-backed ones.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores. Order is preserved in the output.
func NewMultiStore(stores ...Store) *MultiStore {
	return &MultiStore{stores: stores}
}

func (m *MultiStore) Schedules(ctx context.Context) ([]Schedule, error) {
	var out []Schedule
	for _, s := range m.stores {
		schedules, err := s.Schedules(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, schedules...)
	}
	return out, nil
}
