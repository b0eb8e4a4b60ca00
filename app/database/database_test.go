package database

import (
	"database/sql"
	"testing"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}

func testFeedParams(name, url string) UpsertFeedParams {
	return UpsertFeedParams{
		Name:             name,
		URL:              url,
		OpportunityType:  "giveaway",
		Enabled:          true,
		EnableAI:         true,
		AutoPublish:      true,
		QualityThreshold: 0.6,
		CronInterval:     3600,
	}
}

func TestMigrations(t *testing.T) {
	db := openTestDB(t)

	tables := []string{"feeds", "opportunities", "posts", "seen_items",
		"favorites", "media_files", "settings", "processing_log"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`,
			table).Scan(&name)
		if err != nil {
			t.Errorf("Expected table %q to exist: %v", table, err)
		}
	}
}
