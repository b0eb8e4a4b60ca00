package cleanup

import (
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/dbelyaev/oppradar/app/blob"
	"github.com/dbelyaev/oppradar/app/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

type testEnv struct {
	db            *sql.DB
	feedID        string
	opportunities database.OpportunityRepository
	settings      database.SettingsRepository
	expirer       *Expirer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)

	feedRepo := database.NewFeedRepository(db)
	feedID, err := feedRepo.Upsert(database.UpsertFeedParams{
		Name:             "Feed",
		URL:              "https://example.com/feed.xml",
		OpportunityType:  "giveaway",
		Enabled:          true,
		QualityThreshold: 0.6,
		CronInterval:     3600,
	})
	if err != nil {
		t.Fatalf("Failed to upsert feed: %v", err)
	}

	opportunities := database.NewOpportunityRepository(db)
	settings := database.NewSettingsRepository(db)
	store := blob.NewFSStore(t.TempDir(), "https://example.com")

	return &testEnv{
		db:            db,
		feedID:        feedID,
		opportunities: opportunities,
		settings:      settings,
		expirer:       NewExpirer(opportunities, settings, store, nil),
	}
}

func (env *testEnv) createOpportunity(t *testing.T, id, opportunityType string, deadline *time.Time, createdAt time.Time) {
	t.Helper()
	op := database.Opportunity{
		ID:              id,
		Slug:            id,
		Title:           id,
		OpportunityType: opportunityType,
		Status:          database.StatusPublished,
		Deadline:        deadline,
		SourceFeedID:    env.feedID,
		CreatedAt:       createdAt,
	}
	if err := env.opportunities.Create(op, "key-"+id); err != nil {
		t.Fatalf("Failed to create opportunity %s: %v", id, err)
	}
}

func (env *testEnv) countOpportunities(t *testing.T) int {
	t.Helper()
	var count int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM opportunities`).Scan(&count); err != nil {
		t.Fatalf("Failed to count opportunities: %v", err)
	}
	return count
}

func daysAgo(now time.Time, days int) *time.Time {
	t := now.Add(-time.Duration(days) * 24 * time.Hour)
	return &t
}

func TestExpirerDeadlineGracePeriod(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	if err := env.settings.SetMany(map[string]string{
		database.SettingDaysAfterDeadline: "7",
	}); err != nil {
		t.Fatalf("Failed to set settings: %v", err)
	}

	// Past the grace window: deleted. Inside it: retained.
	env.createOpportunity(t, "op-old", "giveaway", daysAgo(now, 8), now)
	env.createOpportunity(t, "op-recent", "giveaway", daysAgo(now, 6), now)

	result := env.expirer.Run(now)

	if result.DeletedCount != 1 {
		t.Errorf("Expected 1 deletion, got %d", result.DeletedCount)
	}
	if result.DeletedByType["giveaway"] != 1 {
		t.Errorf("Expected giveaway counted in deletedByType, got %v", result.DeletedByType)
	}
	if len(result.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", result.Errors)
	}

	var remaining string
	if err := env.db.QueryRow(`SELECT id FROM opportunities`).Scan(&remaining); err != nil {
		t.Fatalf("Failed to read remaining opportunity: %v", err)
	}
	if remaining != "op-recent" {
		t.Errorf("Expected op-recent to survive, got %s", remaining)
	}
}

func TestExpirerMaxAgeCeiling(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	if err := env.settings.SetMany(map[string]string{
		database.SettingMaxAgeByType: `{"giveaway": 30, "default": 90}`,
	}); err != nil {
		t.Fatalf("Failed to set settings: %v", err)
	}

	env.createOpportunity(t, "op-aged", "giveaway", nil, now.Add(-31*24*time.Hour))
	env.createOpportunity(t, "op-young", "giveaway", nil, now.Add(-29*24*time.Hour))
	// Type not in the map falls back to the default ceiling
	env.createOpportunity(t, "op-default-aged", "contest", nil, now.Add(-91*24*time.Hour))
	env.createOpportunity(t, "op-default-young", "contest", nil, now.Add(-89*24*time.Hour))

	result := env.expirer.Run(now)

	if result.DeletedCount != 2 {
		t.Errorf("Expected 2 deletions, got %d (%v)", result.DeletedCount, result.DeletedByType)
	}
	if result.SkippedEvergreen != 0 {
		t.Errorf("Expected no evergreen skips with a default ceiling, got %d", result.SkippedEvergreen)
	}
	if env.countOpportunities(t) != 2 {
		t.Errorf("Expected 2 surviving opportunities, got %d", env.countOpportunities(t))
	}
}

func TestExpirerEvergreenPreservation(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	if err := env.settings.SetMany(map[string]string{
		database.SettingMaxAgeByType: `{"giveaway": 30}`,
	}); err != nil {
		t.Fatalf("Failed to set settings: %v", err)
	}

	// No ceiling for this type and no default entry: evergreen
	env.createOpportunity(t, "op-evergreen", "scholarship", nil, now.Add(-10*365*24*time.Hour))

	result := env.expirer.Run(now)

	if result.DeletedCount != 0 {
		t.Errorf("Expected no deletions, got %d", result.DeletedCount)
	}
	if result.SkippedEvergreen != 1 {
		t.Errorf("Expected 1 evergreen skip, got %d", result.SkippedEvergreen)
	}
	if env.countOpportunities(t) != 1 {
		t.Error("Expected evergreen record to survive")
	}
}

func TestExpirerNeverTouchesPosts(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	post := database.Post{
		ID:           "post-ancient",
		Slug:         "post-ancient",
		Title:        "Old Post",
		SourceFeedID: env.feedID,
		Status:       database.StatusPublished,
		CreatedAt:    now.Add(-5 * 365 * 24 * time.Hour),
	}
	if err := env.opportunities.CreatePost(post, "key-post"); err != nil {
		t.Fatalf("Failed to create post: %v", err)
	}

	if err := env.settings.SetMany(map[string]string{
		database.SettingMaxAgeByType: `{"default": 1}`,
	}); err != nil {
		t.Fatalf("Failed to set settings: %v", err)
	}

	env.expirer.Run(now)

	var count int
	if err := env.db.QueryRow(`SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		t.Fatalf("Failed to count posts: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected post to survive cleanup, got %d posts", count)
	}
}

func TestExpirerDeletesDependentRows(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.createOpportunity(t, "op-1", "giveaway", daysAgo(now, 30), now)
	if _, err := env.db.Exec(`INSERT INTO favorites (id, user_ref, opportunity_id, created_at)
		VALUES ('fav-1', 'user-1', 'op-1', ?)`, now); err != nil {
		t.Fatalf("Failed to insert favorite: %v", err)
	}
	if err := env.opportunities.AttachMedia("op-1", "media/op-1.jpg", "https://example.com/media/op-1.jpg"); err != nil {
		t.Fatalf("Failed to attach media: %v", err)
	}

	result := env.expirer.Run(now)
	if result.DeletedCount != 1 {
		t.Fatalf("Expected 1 deletion, got %d (%v)", result.DeletedCount, result.Errors)
	}

	for _, table := range []string{"favorites", "media_files", "opportunities"} {
		var count int
		if err := env.db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&count); err != nil {
			t.Fatalf("Failed to count %s: %v", table, err)
		}
		if count != 0 {
			t.Errorf("Expected %s cleared, got %d rows", table, count)
		}
	}
}

func TestExpirationStats(t *testing.T) {
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.createOpportunity(t, "op-expired", "giveaway", daysAgo(now, 2), now)
	env.createOpportunity(t, "op-soon", "giveaway", daysAgo(now, -3), now)
	env.createOpportunity(t, "op-later", "giveaway", daysAgo(now, -20), now)
	env.createOpportunity(t, "op-far", "giveaway", daysAgo(now, -60), now)
	env.createOpportunity(t, "op-undated", "giveaway", nil, now)

	stats, err := env.expirer.ExpirationStats(now)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats.ExpiredCount != 1 {
		t.Errorf("Expected 1 expired, got %d", stats.ExpiredCount)
	}
	if stats.ExpiringIn7Days != 1 {
		t.Errorf("Expected 1 expiring in 7 days, got %d", stats.ExpiringIn7Days)
	}
	if stats.ExpiringIn30Days != 2 {
		t.Errorf("Expected 2 expiring in 30 days, got %d", stats.ExpiringIn30Days)
	}
	if stats.NoDeadlineCount != 1 {
		t.Errorf("Expected 1 undated, got %d", stats.NoDeadlineCount)
	}

	// Read-only: nothing deleted
	if env.countOpportunities(t) != 5 {
		t.Errorf("Expected stats not to mutate state, got %d opportunities", env.countOpportunities(t))
	}
}
