package cleanup

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dbelyaev/oppradar/app/blob"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/metrics"
)

const defaultDaysAfterDeadline = 7

// Key in the max_age_by_type map that supplies the fallback ceiling for
// types without an explicit entry.
const defaultAgeKey = "default"

// Result summarizes one cleanup run.
type Result struct {
	DeletedCount     int            `json:"deletedCount"`
	DeletedByType    map[string]int `json:"deletedByType"`
	SkippedEvergreen int            `json:"skippedEvergreen"`
	Errors           []string       `json:"errors"`
}

// Stats is the read-only expiration report for operators.
type Stats struct {
	ExpiredCount     int `json:"expiredCount"`
	ExpiringIn7Days  int `json:"expiringIn7Days"`
	ExpiringIn30Days int `json:"expiringIn30Days"`
	NoDeadlineCount  int `json:"noDeadlineCount"`
}

// Expirer deletes opportunities whose deadline plus grace period has passed,
// or whose age exceeds the per-type ceiling. Records of a type with no
// configured ceiling are evergreen and never deleted. Posts live in their
// own table and are never touched.
type Expirer struct {
	opportunities database.OpportunityRepository
	settings      database.SettingsRepository
	blobs         blob.Store
	collector     *metrics.Collector
}

func NewExpirer(opportunities database.OpportunityRepository, settings database.SettingsRepository,
	blobs blob.Store, collector *metrics.Collector) *Expirer {
	return &Expirer{
		opportunities: opportunities,
		settings:      settings,
		blobs:         blobs,
		collector:     collector,
	}
}

// Run evaluates every opportunity against the expiration policy. Failures
// are per-record: one bad row lands in Errors and the run continues.
func (e *Expirer) Run(now time.Time) *Result {
	start := time.Now()
	result := &Result{DeletedByType: make(map[string]int)}

	graceDays := e.settings.GetInt(database.SettingDaysAfterDeadline, defaultDaysAfterDeadline)
	cutoff := now.Add(-time.Duration(graceDays) * 24 * time.Hour)

	expired, err := e.opportunities.DeadlineBefore(cutoff)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to select expired records: %v", err))
	}
	for _, candidate := range expired {
		e.delete(candidate, result)
	}

	maxAgeByType, err := e.settings.GetIntMap(database.SettingMaxAgeByType)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to load age ceilings: %v", err))
		maxAgeByType = nil
	}

	undated, err := e.opportunities.WithoutDeadline()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to select undated records: %v", err))
	}
	for _, candidate := range undated {
		ceilingDays, ok := maxAgeByType[candidate.OpportunityType]
		if !ok {
			ceilingDays, ok = maxAgeByType[defaultAgeKey]
		}
		if !ok {
			result.SkippedEvergreen++
			continue
		}

		if now.Sub(candidate.CreatedAt) > time.Duration(ceilingDays)*24*time.Hour {
			e.delete(candidate, result)
		}
	}

	if e.collector != nil {
		e.collector.RecordCleanupRun(time.Since(start))
	}

	slog.Info("Cleanup run finished",
		"deleted", result.DeletedCount,
		"skipped_evergreen", result.SkippedEvergreen,
		"errors", len(result.Errors))

	return result
}

func (e *Expirer) delete(candidate database.ExpirationCandidate, result *Result) {
	mediaPaths, err := e.opportunities.DeleteCascade(candidate.ID)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to delete %s: %v", candidate.ID, err))
		return
	}

	for _, path := range mediaPaths {
		if err := e.blobs.Remove(path); err != nil {
			slog.Warn("Failed to remove media file", "path", path, "error", err)
		}
	}

	result.DeletedCount++
	result.DeletedByType[candidate.OpportunityType]++
	if e.collector != nil {
		e.collector.RecordCleanupDeleted(candidate.OpportunityType, 1)
	}
}

// ExpirationStats reports expiration pressure without mutating anything.
func (e *Expirer) ExpirationStats(now time.Time) (*Stats, error) {
	expired, err := e.opportunities.CountDeadlineBefore(now)
	if err != nil {
		return nil, fmt.Errorf("failed to count expired records: %w", err)
	}
	in7, err := e.opportunities.CountDeadlineBetween(now, now.Add(7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count records expiring in 7 days: %w", err)
	}
	in30, err := e.opportunities.CountDeadlineBetween(now, now.Add(30*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count records expiring in 30 days: %w", err)
	}
	noDeadline, err := e.opportunities.CountNoDeadline()
	if err != nil {
		return nil, fmt.Errorf("failed to count undated records: %w", err)
	}

	return &Stats{
		ExpiredCount:     expired,
		ExpiringIn7Days:  in7,
		ExpiringIn30Days: in30,
		NoDeadlineCount:  noDeadline,
	}, nil
}
