package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type feedRepository struct {
	db *sql.DB
}

func NewFeedRepository(db *sql.DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, name, url, opportunity_type, status, enable_scraping, enable_ai,
	auto_publish, allow_republishing, ai_provider, ai_model, quality_threshold,
	priority, cron_interval, fallback_image_url, total_processed, total_published,
	url_list_offset, consecutive_errors, processing_status, last_error,
	last_fetched_at, created_at, updated_at`

func (r *feedRepository) scanFeed(row interface{ Scan(...any) error }) (*Feed, error) {
	var feed Feed
	var lastFetched sql.NullTime
	err := row.Scan(
		&feed.ID, &feed.Name, &feed.URL, &feed.OpportunityType, &feed.Status,
		&feed.EnableScraping, &feed.EnableAI, &feed.AutoPublish, &feed.AllowRepublishing,
		&feed.AIProvider, &feed.AIModel, &feed.QualityThreshold,
		&feed.Priority, &feed.CronInterval, &feed.FallbackImageURL,
		&feed.TotalProcessed, &feed.TotalPublished, &feed.URLListOffset,
		&feed.ConsecutiveErrors, &feed.ProcessingStatus, &feed.LastError,
		&lastFetched, &feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lastFetched.Valid {
		t := lastFetched.Time
		feed.LastFetchedAt = &t
	}
	return &feed, nil
}

// Upsert registers a feed source keyed by URL. Policy fields are replaced;
// runtime state (counters, offset, error count) is preserved on update.
func (r *feedRepository) Upsert(p UpsertFeedParams) (string, error) {
	existing, err := r.GetByURL(p.URL)
	if err != nil {
		return "", fmt.Errorf("failed to check existing feed: %w", err)
	}

	status := FeedStatusActive
	if !p.Enabled {
		status = FeedStatusInactive
	}
	now := time.Now().UTC()

	if existing != nil {
		// A feed deactivated after repeated failures stays in error state
		// until explicitly reactivated.
		if existing.Status == FeedStatusError {
			status = FeedStatusError
		}
		_, err = r.db.Exec(`
			UPDATE feeds
			SET name = ?, opportunity_type = ?, status = ?, enable_scraping = ?,
			    enable_ai = ?, auto_publish = ?, allow_republishing = ?,
			    ai_provider = ?, ai_model = ?, quality_threshold = ?,
			    priority = ?, cron_interval = ?, fallback_image_url = ?, updated_at = ?
			WHERE id = ?
		`, p.Name, p.OpportunityType, status, p.EnableScraping,
			p.EnableAI, p.AutoPublish, p.AllowRepublishing,
			p.AIProvider, p.AIModel, p.QualityThreshold,
			p.Priority, p.CronInterval, p.FallbackImageURL, now, existing.ID)
		if err != nil {
			return "", fmt.Errorf("failed to update feed: %w", err)
		}
		return existing.ID, nil
	}

	id := uuid.NewString()
	_, err = r.db.Exec(`
		INSERT INTO feeds (id, name, url, opportunity_type, status, enable_scraping,
			enable_ai, auto_publish, allow_republishing, ai_provider, ai_model,
			quality_threshold, priority, cron_interval, fallback_image_url,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, p.Name, p.URL, p.OpportunityType, status, p.EnableScraping,
		p.EnableAI, p.AutoPublish, p.AllowRepublishing, p.AIProvider, p.AIModel,
		p.QualityThreshold, p.Priority, p.CronInterval, p.FallbackImageURL,
		now, now)
	if err != nil {
		return "", fmt.Errorf("failed to insert feed: %w", err)
	}

	return id, nil
}

func (r *feedRepository) Get(id string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(
		`SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) GetByURL(url string) (*Feed, error) {
	feed, err := r.scanFeed(r.db.QueryRow(
		`SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed by URL: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) listFeeds(query string, args ...any) ([]Feed, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		feed, err := r.scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *feed)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return feeds, nil
}

func (r *feedRepository) ListActive() ([]Feed, error) {
	return r.listFeeds(`SELECT ` + feedColumns + ` FROM feeds
		WHERE status = 'active' ORDER BY priority DESC, name`)
}

// ListDue returns active feeds whose cron interval has elapsed since the
// last fetch. Feeds never fetched are always due.
func (r *feedRepository) ListDue(now time.Time) ([]Feed, error) {
	feeds, err := r.ListActive()
	if err != nil {
		return nil, err
	}

	due := make([]Feed, 0, len(feeds))
	for _, feed := range feeds {
		if feed.LastFetchedAt == nil {
			due = append(due, feed)
			continue
		}
		next := feed.LastFetchedAt.Add(time.Duration(feed.CronInterval) * time.Second)
		if !next.After(now) {
			due = append(due, feed)
		}
	}
	return due, nil
}

func (r *feedRepository) TryAcquire(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE feeds
		SET processing_status = ?, updated_at = ?
		WHERE id = ? AND processing_status = ?
	`, ProcessingFetching, time.Now().UTC(), id, ProcessingIdle)
	if err != nil {
		return false, fmt.Errorf("failed to acquire feed lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *feedRepository) SetProcessingStatus(id, status string) error {
	_, err := r.db.Exec(`
		UPDATE feeds SET processing_status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set processing status: %w", err)
	}
	return nil
}

// ReleaseStaleLocks returns every non-idle processing status to idle. A lock
// left behind by a crashed run can have no owner once the process restarts,
// since all processing happens in this single process.
func (r *feedRepository) ReleaseStaleLocks() (int64, error) {
	res, err := r.db.Exec(`
		UPDATE feeds
		SET processing_status = ?, updated_at = ?
		WHERE processing_status != ?
	`, ProcessingIdle, time.Now().UTC(), ProcessingIdle)
	if err != nil {
		return 0, fmt.Errorf("failed to release stale locks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n, nil
}

// RecordRunSuccess stores the pagination offset the next run resumes from
// and clears the error state in a single statement, so concurrent readers
// never observe a half-applied run result.
func (r *feedRepository) RecordRunSuccess(id string, nextOffset int, fetchedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET url_list_offset = ?,
		    last_fetched_at = ?,
		    consecutive_errors = 0,
		    last_error = '',
		    processing_status = ?,
		    updated_at = ?
		WHERE id = ?
	`, nextOffset, fetchedAt.UTC(), ProcessingIdle, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to record run success: %w", err)
	}
	return nil
}

// RecordFetchFailure bumps the consecutive error count and flips the feed to
// error status once deactivateAfter failures accumulate. Reports whether the
// feed was deactivated by this call.
func (r *feedRepository) RecordFetchFailure(id, message string, deactivateAfter int) (bool, error) {
	var status string
	err := r.db.QueryRow(`
		UPDATE feeds
		SET consecutive_errors = consecutive_errors + 1,
		    last_error = ?,
		    status = CASE WHEN consecutive_errors + 1 >= ? THEN 'error' ELSE status END,
		    processing_status = ?,
		    updated_at = ?
		WHERE id = ?
		RETURNING status
	`, message, deactivateAfter, ProcessingIdle, time.Now().UTC(), id).Scan(&status)
	if err != nil {
		return false, fmt.Errorf("failed to record fetch failure: %w", err)
	}
	return status == FeedStatusError, nil
}

// Reactivate clears the error count and returns the feed to active status.
// Dedup state is untouched.
func (r *feedRepository) Reactivate(id string) (bool, error) {
	res, err := r.db.Exec(`
		UPDATE feeds
		SET status = ?, consecutive_errors = 0, last_error = '',
		    processing_status = ?, updated_at = ?
		WHERE id = ?
	`, FeedStatusActive, ProcessingIdle, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to reactivate feed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// ResetRunCounters zeroes the processed/published counters and the pagination
// offset so a cleared feed can be rescanned from the start.
func (r *feedRepository) ResetRunCounters(id string) error {
	_, err := r.db.Exec(`
		UPDATE feeds
		SET total_processed = 0, total_published = 0, url_list_offset = 0,
		    updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reset run counters: %w", err)
	}
	return nil
}

func (r *feedRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

func (r *feedRepository) CountActive() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds WHERE status = 'active'").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get active feed count: %w", err)
	}
	return count, nil
}
