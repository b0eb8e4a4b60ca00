package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Log levels
const (
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type logRepository struct {
	db *sql.DB
}

func NewLogRepository(db *sql.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Append(level, message string, feedID *string) error {
	_, err := r.db.Exec(`
		INSERT INTO processing_log (level, message, feed_id, created_at)
		VALUES (?, ?, ?, ?)
	`, level, message, feedID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// Trim deletes the oldest entries beyond max and returns how many were removed.
func (r *logRepository) Trim(max int) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM processing_log
		WHERE id NOT IN (
			SELECT id FROM processing_log ORDER BY id DESC LIMIT ?
		)
	`, max)
	if err != nil {
		return 0, fmt.Errorf("failed to trim processing log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

func (r *logRepository) Recent(limit int) ([]LogEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, level, message, feed_id, created_at
		FROM processing_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var entry LogEntry
		var feedID sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Level, &entry.Message, &feedID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}
		if feedID.Valid {
			s := feedID.String
			entry.FeedID = &s
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}
	return entries, nil
}
