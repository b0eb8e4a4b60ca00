package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type dedupRepository struct {
	db *sql.DB
}

func NewDedupRepository(db *sql.DB) DedupRepository {
	return &dedupRepository{db: db}
}

func (r *dedupRepository) IsDuplicate(feedID, identityKey string, crossFeed bool) (bool, error) {
	var query string
	var args []any

	if crossFeed {
		query = `SELECT id FROM seen_items WHERE identity_key = ? LIMIT 1`
		args = []any{identityKey}
	} else {
		query = `SELECT id FROM seen_items WHERE feed_id = ? AND identity_key = ? LIMIT 1`
		args = []any{feedID, identityKey}
	}

	var id string
	err := r.db.QueryRow(query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check duplicate: %w", err)
	}
	return true, nil
}

// MarkSeen is write-once: marking an already-seen key is a no-op.
func (r *dedupRepository) MarkSeen(feedID, identityKey string) error {
	_, err := r.db.Exec(`
		INSERT INTO seen_items (id, feed_id, identity_key, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (feed_id, identity_key) DO NOTHING
	`, uuid.NewString(), feedID, identityKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark item seen: %w", err)
	}
	return nil
}

func (r *dedupRepository) ClearForFeed(feedID string) (int64, error) {
	res, err := r.db.Exec(`
		DELETE FROM seen_items
		WHERE feed_id = ?
		   OR entity_id IN (SELECT id FROM opportunities WHERE source_feed_id = ?)
		   OR entity_id IN (SELECT id FROM posts WHERE source_feed_id = ?)
	`, feedID, feedID, feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear duplicates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

func (r *dedupRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM seen_items").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get seen item count: %w", err)
	}
	return count, nil
}
