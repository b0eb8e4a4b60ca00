package database

import (
	"time"
)

// Feed statuses
const (
	FeedStatusActive   = "active"
	FeedStatusInactive = "inactive"
	FeedStatusError    = "error"
)

// Processing statuses
const (
	ProcessingIdle     = "idle"
	ProcessingFetching = "fetching"
	ProcessingWorking  = "processing"
)

// Entity statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// Feed represents a configured feed source and its runtime state
type Feed struct {
	ID                string
	Name              string
	URL               string
	OpportunityType   string
	Status            string
	EnableScraping    bool
	EnableAI          bool
	AutoPublish       bool
	AllowRepublishing bool
	AIProvider        string
	AIModel           string
	QualityThreshold  float64
	Priority          int
	CronInterval      int // seconds
	FallbackImageURL  string
	TotalProcessed    int
	TotalPublished    int
	URLListOffset     int
	ConsecutiveErrors int
	ProcessingStatus  string
	LastError         string
	LastFetchedAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Opportunity is a publishable record derived from an accepted feed item
type Opportunity struct {
	ID               string
	Slug             string
	Title            string
	Excerpt          string
	Content          string
	OpportunityType  string
	Status           string
	Deadline         *time.Time
	PrizeValue       string
	Location         string
	Requirements     string
	FeaturedImageURL string
	SourceFeedID     string
	PublishedAt      *time.Time
	CreatedAt        time.Time
}

// Post is blog-style evergreen content, exempt from expiration
type Post struct {
	ID               string
	Slug             string
	Title            string
	Excerpt          string
	Content          string
	FeaturedImageURL string
	SourceFeedID     string
	Status           string
	PublishedAt      *time.Time
	CreatedAt        time.Time
}

// SeenItem marks an identity key as processed for a feed. EntityID links
// the record to the resulting opportunity or post once one is created;
// FeedID may become NULL after a feed is deleted or reassigned.
type SeenItem struct {
	ID          string
	FeedID      *string
	EntityID    *string
	IdentityKey string
	CreatedAt   time.Time
}

// MediaFile is a stored media record attached to an opportunity
type MediaFile struct {
	ID            string
	OpportunityID *string
	Path          string
	URL           string
	CreatedAt     time.Time
}

// LogEntry is an append-only processing log record
type LogEntry struct {
	ID        int64
	Level     string
	Message   string
	FeedID    *string
	CreatedAt time.Time
}
