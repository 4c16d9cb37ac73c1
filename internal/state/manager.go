// Package state keeps an optional local journal of sync and export runs in SQLite.
package state

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/model"
	_ "github.com/mattn/go-sqlite3"
)

// Operation names recorded in the history.
const (
	OperationSync   = "sync"
	OperationExport = "export"
)

// Run statuses recorded in the history.
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"
)

// Manager implements the StateManager interface
type Manager struct {
	db *sql.DB
}

// NewManager creates a new state manager instance
func NewManager() *Manager {
	return &Manager{}
}

// Initialize opens the SQLite database at dbPath and creates the schema
func (m *Manager) Initialize(dbPath string) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return errors.NewGenericError("failed to open state database", err)
	}

	m.db = db

	// Ping detects corruption before the schema is touched
	if err := m.db.Ping(); err != nil {
		m.db.Close()
		m.db = nil
		return errors.NewGenericError("state database is corrupted or inaccessible", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS template_state (
		key TEXT PRIMARY KEY,
		remote_id TEXT NOT NULL,
		digest TEXT NOT NULL,
		last_synced TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		operation TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		details TEXT
	);
	`

	if _, err := m.db.Exec(schema); err != nil {
		m.db.Close()
		m.db = nil
		if isCorruptionError(err) {
			return errors.NewGenericError("state database is corrupted and cannot be initialized", err)
		}
		return errors.NewGenericError("failed to create state schema", err)
	}

	return nil
}

// isCorruptionError checks if an error indicates database corruption
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{
		"database disk image is malformed",
		"file is not a database",
		"database is locked",
		"database corruption",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// wrap classifies a database error.
func wrap(err error, message string) error {
	if isCorruptionError(err) {
		return errors.NewGenericError("state database is corrupted", err)
	}
	return errors.NewGenericError(message, err)
}

// RecordRun appends one row to the run history
func (m *Manager) RecordRun(run interfaces.RunRecord) error {
	if m.db == nil {
		return errors.NewGenericError("state database not initialized", nil)
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now()
	}

	if _, err := m.db.Exec(
		"INSERT INTO sync_history (operation, timestamp, status, details) VALUES (?, ?, ?, ?)",
		run.Operation,
		run.Timestamp.UTC(),
		run.Status,
		run.Details,
	); err != nil {
		return wrap(err, "failed to record run history")
	}
	return nil
}

// RecordTemplates upserts the last synced state of each template key
func (m *Manager) RecordTemplates(entries []interfaces.TemplateRecord, timestamp time.Time) error {
	if m.db == nil {
		return errors.NewGenericError("state database not initialized", nil)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO template_state (key, remote_id, digest, last_synced) VALUES (?, ?, ?, ?)")
	if err != nil {
		return wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.Exec(e.Key, e.RemoteID, e.Digest, timestamp.UTC()); err != nil {
			return wrap(err, fmt.Sprintf("failed to record template state for %s", e.Key))
		}
	}

	if err := tx.Commit(); err != nil {
		return wrap(err, "failed to commit transaction")
	}
	return nil
}

// History returns the most recent runs first. A limit of zero or less returns all runs.
func (m *Manager) History(limit int) ([]interfaces.RunRecord, error) {
	if m.db == nil {
		return nil, errors.NewGenericError("state database not initialized", nil)
	}

	query := "SELECT id, operation, timestamp, status, COALESCE(details, '') FROM sync_history ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, wrap(err, "failed to query run history")
	}
	defer rows.Close()

	var runs []interfaces.RunRecord
	for rows.Next() {
		var run interfaces.RunRecord
		var ts sql.NullString
		if err := rows.Scan(&run.ID, &run.Operation, &ts, &run.Status, &run.Details); err != nil {
			return nil, wrap(err, "failed to scan run history row")
		}
		if run.Timestamp, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "failed to iterate run history")
	}

	return runs, nil
}

// GetTemplateRecords returns the recorded state of every template key
func (m *Manager) GetTemplateRecords() (map[string]interfaces.TemplateRecord, error) {
	if m.db == nil {
		return nil, errors.NewGenericError("state database not initialized", nil)
	}

	rows, err := m.db.Query("SELECT key, remote_id, digest, last_synced FROM template_state")
	if err != nil {
		return nil, wrap(err, "failed to query template state")
	}
	defer rows.Close()

	records := make(map[string]interfaces.TemplateRecord)
	for rows.Next() {
		var rec interfaces.TemplateRecord
		var ts sql.NullString
		if err := rows.Scan(&rec.Key, &rec.RemoteID, &rec.Digest, &ts); err != nil {
			return nil, wrap(err, "failed to scan template state row")
		}
		if rec.LastSynced, err = parseTimestamp(ts); err != nil {
			return nil, err
		}
		records[rec.Key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(err, "failed to iterate template state")
	}

	return records, nil
}

// parseTimestamp tries the formats SQLite may hand back for a TIMESTAMP column.
func parseTimestamp(ts sql.NullString) (time.Time, error) {
	if !ts.Valid || ts.String == "" {
		return time.Time{}, nil
	}

	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05-07:00",
		time.DateTime,
	}

	var parseErr error
	for _, format := range formats {
		t, err := time.Parse(format, ts.String)
		if err == nil {
			return t, nil
		}
		parseErr = err
	}
	return time.Time{}, errors.NewGenericError("failed to parse timestamp", parseErr)
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db == nil {
		return nil
	}

	if err := m.db.Close(); err != nil {
		return errors.NewGenericError("failed to close state database", err)
	}

	m.db = nil
	return nil
}

// Digest returns the SHA256 of the template details as sent on the wire.
func Digest(d *model.Details) string {
	hash := sha256.New()
	if d != nil {
		data, _ := json.Marshal(d)
		hash.Write(data)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// RecordsFor builds journal entries for templates confirmed by the remote.
func RecordsFor(templates []model.Template) []interfaces.TemplateRecord {
	records := make([]interfaces.TemplateRecord, 0, len(templates))
	for _, t := range templates {
		records = append(records, interfaces.TemplateRecord{
			Key:      t.Key(),
			RemoteID: t.ID,
			Digest:   Digest(t.Details),
		})
	}
	return records
}
