package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type opportunityRepository struct {
	db *sql.DB
}

func NewOpportunityRepository(db *sql.DB) OpportunityRepository {
	return &opportunityRepository{db: db}
}

// Create persists an accepted opportunity. The opportunity row, its dedup
// record, and the owning feed's counters are written in one transaction so a
// mid-batch abort can never leave an opportunity without its marker or a
// marker without its opportunity.
func (r *opportunityRepository) Create(op Opportunity, identityKey string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO opportunities (id, slug, title, excerpt, content,
			opportunity_type, status, deadline, prize_value, location,
			requirements, featured_image_url, source_feed_id, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, op.ID, op.Slug, op.Title, op.Excerpt, op.Content,
		op.OpportunityType, op.Status, nullableTime(op.Deadline), op.PrizeValue, op.Location,
		op.Requirements, op.FeaturedImageURL, op.SourceFeedID, nullableTime(op.PublishedAt), op.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert opportunity: %w", err)
	}

	if err := upsertSeenItem(tx, op.SourceFeedID, op.ID, identityKey); err != nil {
		return err
	}

	publishedDelta := 0
	if op.Status == StatusPublished {
		publishedDelta = 1
	}
	_, err = tx.Exec(`
		UPDATE feeds
		SET total_processed = total_processed + 1,
		    total_published = total_published + ?,
		    updated_at = ?
		WHERE id = ?
	`, publishedDelta, time.Now().UTC(), op.SourceFeedID)
	if err != nil {
		return fmt.Errorf("failed to update feed counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit opportunity: %w", err)
	}
	return nil
}

func (r *opportunityRepository) CreatePost(post Post, identityKey string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO posts (id, slug, title, excerpt, content,
			featured_image_url, source_feed_id, status, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, post.ID, post.Slug, post.Title, post.Excerpt, post.Content,
		post.FeaturedImageURL, post.SourceFeedID, post.Status,
		nullableTime(post.PublishedAt), post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	if err := upsertSeenItem(tx, post.SourceFeedID, post.ID, identityKey); err != nil {
		return err
	}

	publishedDelta := 0
	if post.Status == StatusPublished {
		publishedDelta = 1
	}
	_, err = tx.Exec(`
		UPDATE feeds
		SET total_processed = total_processed + 1,
		    total_published = total_published + ?,
		    updated_at = ?
		WHERE id = ?
	`, publishedDelta, time.Now().UTC(), post.SourceFeedID)
	if err != nil {
		return fmt.Errorf("failed to update feed counters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit post: %w", err)
	}
	return nil
}

// upsertSeenItem links the dedup record to the created entity. A record may
// already exist with a NULL entity_id when the key was marked seen earlier.
func upsertSeenItem(tx *sql.Tx, feedID, entityID, identityKey string) error {
	_, err := tx.Exec(`
		INSERT INTO seen_items (id, feed_id, entity_id, identity_key, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, identity_key) DO UPDATE SET entity_id = excluded.entity_id
	`, uuid.NewString(), feedID, entityID, identityKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record dedup entry: %w", err)
	}
	return nil
}

func (r *opportunityRepository) SlugExists(slug string) (bool, error) {
	var id string
	err := r.db.QueryRow(`
		SELECT id FROM opportunities WHERE slug = ?
		UNION ALL
		SELECT id FROM posts WHERE slug = ?
		LIMIT 1
	`, slug, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return true, nil
}

func (r *opportunityRepository) AttachMedia(opportunityID, path, url string) error {
	_, err := r.db.Exec(`
		INSERT INTO media_files (id, opportunity_id, path, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), opportunityID, path, url, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to attach media: %w", err)
	}
	return nil
}

func (r *opportunityRepository) queryCandidates(query string, args ...any) ([]ExpirationCandidate, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiration candidates: %w", err)
	}
	defer rows.Close()

	var candidates []ExpirationCandidate
	for rows.Next() {
		var c ExpirationCandidate
		var deadline sql.NullTime
		if err := rows.Scan(&c.ID, &c.OpportunityType, &deadline, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan candidate row: %w", err)
		}
		if deadline.Valid {
			t := deadline.Time
			c.Deadline = &t
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}
	return candidates, nil
}

func (r *opportunityRepository) DeadlineBefore(cutoff time.Time) ([]ExpirationCandidate, error) {
	return r.queryCandidates(`
		SELECT id, opportunity_type, deadline, created_at
		FROM opportunities
		WHERE deadline IS NOT NULL AND deadline < ?
	`, cutoff.UTC())
}

func (r *opportunityRepository) WithoutDeadline() ([]ExpirationCandidate, error) {
	return r.queryCandidates(`
		SELECT id, opportunity_type, deadline, created_at
		FROM opportunities
		WHERE deadline IS NULL
	`)
}

// DeleteCascade removes one opportunity and its dependent rows in the order
// favorites, dedup records, media files, opportunity. Returns the storage
// paths of removed media files so the caller can delete the blobs.
func (r *opportunityRepository) DeleteCascade(id string) ([]string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM favorites WHERE opportunity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete favorites: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM seen_items WHERE entity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete dedup entries: %w", err)
	}

	rows, err := tx.Query(`SELECT path FROM media_files WHERE opportunity_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query media files: %w", err)
	}
	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan media path: %w", err)
		}
		paths = append(paths, path)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media rows: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM media_files WHERE opportunity_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete media files: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM opportunities WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete opportunity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return paths, nil
}

func (r *opportunityRepository) countWhere(where string, args ...any) (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM opportunities "+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count opportunities: %w", err)
	}
	return count, nil
}

func (r *opportunityRepository) CountDeadlineBefore(t time.Time) (int, error) {
	return r.countWhere("WHERE deadline IS NOT NULL AND deadline < ?", t.UTC())
}

func (r *opportunityRepository) CountDeadlineBetween(from, to time.Time) (int, error) {
	return r.countWhere("WHERE deadline IS NOT NULL AND deadline >= ? AND deadline < ?",
		from.UTC(), to.UTC())
}

func (r *opportunityRepository) CountNoDeadline() (int, error) {
	return r.countWhere("WHERE deadline IS NULL")
}

func (r *opportunityRepository) Count() (int, error) {
	return r.countWhere("")
}

func (r *opportunityRepository) CountByStatus(status string) (int, error) {
	return r.countWhere("WHERE status = ?", status)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
