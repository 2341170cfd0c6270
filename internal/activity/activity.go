// Package activity keeps a persistent log of what the console did:
// logins, dispatched actions, session teardowns. The janitor prunes it.
package activity

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Entry is one logged console action.
type Entry struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g. "book.add", "session.login"
	Level     string    `json:"level"` // "info", "warn", "error"
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecorderProvider defines the interface for the activity log.
type RecorderProvider interface {
	Record(entryType, level, message string) error
	Recent(limit int) ([]Entry, error)
	PruneOlderThan(cutoff time.Time) (int64, error)
}

// Recorder persists activity entries to the console database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder creates a new Recorder.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one entry to the log.
func (r *Recorder) Record(entryType, level, message string) error {
	_, err := r.db.Exec(
		"INSERT INTO activity (id, type, level, message) VALUES (?, ?, ?, ?)",
		uuid.New().String(), entryType, level, message)
	return err
}

// Recent returns the newest entries, newest first.
func (r *Recorder) Recent(limit int) ([]Entry, error) {
	rows, err := r.db.Query(
		"SELECT id, type, level, message, created_at FROM activity ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Type, &e.Level, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PruneOlderThan deletes entries created before cutoff and reports how many
// went away.
func (r *Recorder) PruneOlderThan(cutoff time.Time) (int64, error) {
	res, err := r.db.Exec("DELETE FROM activity WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
