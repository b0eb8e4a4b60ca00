package database

import (
	"time"
)

// UpsertFeedParams carries a feed source definition into the registry.
// Runtime state (counters, offsets, error counts) is never overwritten
// by an upsert.
type UpsertFeedParams struct {
	Name              string
	URL               string
	OpportunityType   string
	Enabled           bool
	EnableScraping    bool
	EnableAI          bool
	AutoPublish       bool
	AllowRepublishing bool
	AIProvider        string
	AIModel           string
	QualityThreshold  float64
	Priority          int
	CronInterval      int
	FallbackImageURL  string
}

type FeedRepository interface {
	Upsert(p UpsertFeedParams) (string, error)
	Get(id string) (*Feed, error)
	GetByURL(url string) (*Feed, error)
	ListActive() ([]Feed, error)
	ListDue(now time.Time) ([]Feed, error)

	// TryAcquire flips processing_status from idle to fetching and reports
	// whether the caller won the per-feed lock.
	TryAcquire(id string) (bool, error)
	SetProcessingStatus(id, status string) error
	// ReleaseStaleLocks resets all non-idle processing statuses, called once
	// at startup so locks held by a crashed run do not wedge their feeds.
	ReleaseStaleLocks() (int64, error)

	RecordRunSuccess(id string, nextOffset int, fetchedAt time.Time) error
	RecordFetchFailure(id, message string, deactivateAfter int) (bool, error)
	Reactivate(id string) (bool, error)
	ResetRunCounters(id string) error

	Count() (int, error)
	CountActive() (int, error)
}

type DedupRepository interface {
	IsDuplicate(feedID, identityKey string, crossFeed bool) (bool, error)
	// MarkSeen records an identity key with no linked entity, so rejected
	// candidates are not re-evaluated on later runs.
	MarkSeen(feedID, identityKey string) error
	// ClearForFeed deletes records matched by feed_id or by entity_id of the
	// feed's opportunities. Entity-linked rows can outlive their feed_id
	// after a feed deletion or reassignment, so both paths are required.
	ClearForFeed(feedID string) (int64, error)
	Count() (int, error)
}

// ExpirationCandidate is the slice of an opportunity the expirer evaluates
type ExpirationCandidate struct {
	ID              string
	OpportunityType string
	Deadline        *time.Time
	CreatedAt       time.Time
}

type OpportunityRepository interface {
	// Create persists the opportunity, links its dedup record, and bumps the
	// owning feed's counters in a single transaction.
	Create(op Opportunity, identityKey string) error
	CreatePost(post Post, identityKey string) error
	SlugExists(slug string) (bool, error)
	AttachMedia(opportunityID, path, url string) error

	DeadlineBefore(cutoff time.Time) ([]ExpirationCandidate, error)
	WithoutDeadline() ([]ExpirationCandidate, error)
	// DeleteCascade removes dependent rows in fixed order (favorites, dedup
	// records, media files) before the opportunity itself and returns the
	// paths of removed media files.
	DeleteCascade(id string) ([]string, error)

	CountDeadlineBefore(t time.Time) (int, error)
	CountDeadlineBetween(from, to time.Time) (int, error)
	CountNoDeadline() (int, error)
	Count() (int, error)
	CountByStatus(status string) (int, error)
}

type SettingsRepository interface {
	Get(key string) (string, bool, error)
	SetMany(values map[string]string) error
	GetInt(key string, def int) int
	GetFloat(key string, def float64) float64
	GetBool(key string, def bool) bool
	GetIntMap(key string) (map[string]int, error)
}

type LogRepository interface {
	Append(level, message string, feedID *string) error
	Trim(max int) (int64, error)
	Recent(limit int) ([]LogEntry, error)
}

// Settings keys used by the pipeline
const (
	SettingQualityThreshold  = "quality_threshold"
	SettingDaysAfterDeadline = "days_after_deadline"
	SettingMaxPostsPerRun    = "max_posts_per_run"
	SettingLogRetention      = "log_retention"
	SettingMaxAgeByType      = "max_age_by_type"
	SettingCrossFeedDedup    = "cross_feed_dedup"
)
