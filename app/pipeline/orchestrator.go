package pipeline

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dbelyaev/oppradar/app/ai"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/feed"
	"github.com/dbelyaev/oppradar/app/metrics"
	"github.com/dbelyaev/oppradar/app/publish"
	"github.com/dbelyaev/oppradar/app/scrape"
)

const (
	defaultMaxPostsPerRun = 10
	deactivateAfter       = 3
)

// Fetcher retrieves and windows a feed's candidates.
type Fetcher interface {
	Fetch(ctx context.Context, feedID, url string, offset, maxPosts int) (*feed.FetchResult, error)
}

// Scraper extracts readable content from a candidate's linked page.
type Scraper interface {
	Scrape(ctx context.Context, pageURL string) *scrape.Result
}

// Evaluator gates and rewrites candidate content.
type Evaluator interface {
	Evaluate(ctx context.Context, digest ai.Digest, policy ai.Policy) (*ai.Verdict, error)
}

// Publisher persists an accepted candidate.
type Publisher interface {
	Publish(source *database.Feed, candidate feed.Candidate, verdict *ai.Verdict) (*publish.Outcome, error)
}

// Orchestrator drives fetch, dedup, scrape, AI gate and publish for one
// feed or for all active feeds. Counters and the pagination offset of a
// feed are mutated only while that feed's processing lock is held.
type Orchestrator struct {
	feeds       database.FeedRepository
	dedup       database.DedupRepository
	settings    database.SettingsRepository
	logs        database.LogRepository
	fetcher     Fetcher
	scraper     Scraper
	gate        Evaluator
	publisher   Publisher
	collector   *metrics.Collector
	concurrency int
}

func NewOrchestrator(
	feeds database.FeedRepository,
	dedup database.DedupRepository,
	settings database.SettingsRepository,
	logs database.LogRepository,
	fetcher Fetcher,
	scraper Scraper,
	gate Evaluator,
	publisher Publisher,
	collector *metrics.Collector,
	concurrency int,
) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		feeds:       feeds,
		dedup:       dedup,
		settings:    settings,
		logs:        logs,
		fetcher:     fetcher,
		scraper:     scraper,
		gate:        gate,
		publisher:   publisher,
		collector:   collector,
		concurrency: concurrency,
	}
}

// ProcessFeed runs the pipeline for one feed. A non-nil error means the run
// could not start (unknown feed, deactivated feed, lock already held);
// per-item failures are reported inside the RunResult instead.
func (o *Orchestrator) ProcessFeed(ctx context.Context, feedID string) (*RunResult, error) {
	source, err := o.feeds.Get(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	if source == nil {
		return nil, fmt.Errorf("feed %s not found", feedID)
	}
	if source.Status == database.FeedStatusError {
		return nil, fmt.Errorf("feed %s is deactivated and must be reactivated first", feedID)
	}

	acquired, err := o.feeds.TryAcquire(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire feed lock: %w", err)
	}
	if !acquired {
		return nil, fmt.Errorf("feed %s is already being processed", feedID)
	}

	start := time.Now()
	result := o.run(ctx, source)

	if o.collector != nil {
		o.collector.RecordFeedRun(result.Success, time.Since(start))
		o.collector.RecordItemsProcessed(result.ItemsProcessed)
	}

	level := database.LogLevelInfo
	if !result.Success {
		level = database.LogLevelError
	}
	message := fmt.Sprintf("Processed feed %s: %d items, %d opportunities, %d posts, %d duplicates, %d AI rejections, %d errors",
		source.Name, result.ItemsProcessed, result.OpportunitiesCreated, result.PostsCreated,
		result.DuplicatesSkipped, result.AIRejections, len(result.Errors))
	if err := o.logs.Append(level, message, &feedID); err != nil {
		slog.Warn("Failed to append processing log", "error", err)
	}

	return result, nil
}

// run executes the pipeline stages with the lock held and always releases
// the lock before returning.
func (o *Orchestrator) run(ctx context.Context, source *database.Feed) *RunResult {
	result := &RunResult{FeedID: source.ID, FeedName: source.Name}

	maxPosts := o.settings.GetInt(database.SettingMaxPostsPerRun, defaultMaxPostsPerRun)

	fetched, err := o.fetcher.Fetch(ctx, source.ID, source.URL, source.URLListOffset, maxPosts)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("fetch failed: %v", err))

		deactivated, recordErr := o.feeds.RecordFetchFailure(source.ID, err.Error(), deactivateAfter)
		if recordErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to record fetch failure: %v", recordErr))
		}
		if deactivated {
			slog.Warn("Feed deactivated after repeated failures", "feed", source.Name)
		}
		return result
	}

	if err := o.feeds.SetProcessingStatus(source.ID, database.ProcessingWorking); err != nil {
		slog.Warn("Failed to update processing status", "feed", source.Name, "error", err)
	}

	crossFeed := o.settings.GetBool(database.SettingCrossFeedDedup, false)

	consumed := 0
	for _, candidate := range fetched.Candidates {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "run canceled")
			break
		}
		result.ItemsProcessed++
		o.processCandidate(ctx, source, candidate, crossFeed, result)
		consumed++
	}

	// Advance only past the items actually consumed, so candidates left
	// unprocessed by a canceled run stay in the next window.
	nextOffset := fetched.NextOffset
	if consumed < len(fetched.Candidates) {
		nextOffset = fetched.StartOffset + consumed
	}

	if err := o.feeds.RecordRunSuccess(source.ID, nextOffset, time.Now()); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to record run: %v", err))
		return result
	}

	result.Success = true
	return result
}

func (o *Orchestrator) processCandidate(ctx context.Context, source *database.Feed,
	candidate feed.Candidate, crossFeed bool, result *RunResult) {

	if !source.AllowRepublishing {
		duplicate, err := o.dedup.IsDuplicate(source.ID, candidate.IdentityKey, crossFeed)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dedup check failed for %s: %v", candidate.IdentityKey, err))
			return
		}
		if duplicate {
			result.DuplicatesSkipped++
			if o.collector != nil {
				o.collector.RecordDuplicateSkipped()
			}
			return
		}
	}

	body := candidate.RawContent
	if source.EnableScraping && o.scraper != nil && candidate.Link != "" {
		if scraped := o.scraper.Scrape(ctx, candidate.Link); scraped != nil {
			body = cmp.Or(scraped.HTML, scraped.Text, body)
			if candidate.ImageURL == "" {
				candidate.ImageURL = scraped.Image
			}
		}
	}

	verdict, ok := o.evaluate(ctx, source, candidate, body, result)
	if !ok {
		return
	}

	outcome, err := o.publisher.Publish(source, candidate, verdict)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("publish failed for %s: %v", candidate.IdentityKey, err))
		return
	}

	switch outcome.Kind {
	case publish.KindPost:
		result.PostsCreated++
		if o.collector != nil {
			o.collector.RecordPostCreated()
		}
	default:
		result.OpportunitiesCreated++
		if o.collector != nil {
			o.collector.RecordOpportunityCreated()
		}
	}
}

// evaluate runs the AI gate when the feed enables it. A quality rejection
// marks the identity key as seen so the candidate is not re-evaluated on the
// next run; an availability failure leaves it unmarked for retry.
func (o *Orchestrator) evaluate(ctx context.Context, source *database.Feed,
	candidate feed.Candidate, body string, result *RunResult) (*ai.Verdict, bool) {

	if !source.EnableAI {
		return &ai.Verdict{
			Valid:           true,
			Title:           candidate.Title,
			Content:         body,
			ConfidenceScore: 1,
		}, true
	}

	threshold := source.QualityThreshold
	if threshold == 0 {
		threshold = o.settings.GetFloat(database.SettingQualityThreshold, 0.6)
	}

	verdict, err := o.gate.Evaluate(ctx, ai.Digest{
		Title:           candidate.Title,
		Body:            body,
		SourceURL:       candidate.Link,
		OpportunityType: source.OpportunityType,
	}, ai.Policy{
		Provider:         source.AIProvider,
		Model:            source.AIModel,
		QualityThreshold: threshold,
	})
	if err == nil {
		return verdict, true
	}

	result.AIRejections++
	switch {
	case errors.Is(err, ai.ErrRejected):
		if o.collector != nil {
			o.collector.RecordAIRejection("rejected")
		}
		if markErr := o.dedup.MarkSeen(source.ID, candidate.IdentityKey); markErr != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to mark rejected item: %v", markErr))
		}
		slog.Debug("Candidate rejected", "feed", source.Name, "key", candidate.IdentityKey, "error", err)
	default:
		if o.collector != nil {
			o.collector.RecordAIRejection("unavailable")
		}
		slog.Warn("AI evaluation unavailable", "feed", source.Name, "key", candidate.IdentityKey, "error", err)
	}
	return nil, false
}

// ProcessAllFeeds runs every active feed with bounded parallelism, in
// priority order. One feed's failure never aborts the batch.
func (o *Orchestrator) ProcessAllFeeds(ctx context.Context) (*BatchResult, error) {
	feeds, err := o.feeds.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list active feeds: %w", err)
	}

	results := make([]RunResult, len(feeds))
	sem := make(chan struct{}, o.concurrency)
	var wg sync.WaitGroup

	for i, source := range feeds {
		wg.Add(1)
		go func(i int, feedID, feedName string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			run, err := o.ProcessFeed(ctx, feedID)
			if err != nil {
				results[i] = RunResult{
					FeedID:   feedID,
					FeedName: feedName,
					Errors:   []string{err.Error()},
				}
				return
			}
			results[i] = *run
		}(i, source.ID, source.Name)
	}
	wg.Wait()

	batch := &BatchResult{Results: results}
	for _, run := range results {
		if run.Success {
			batch.FeedsProcessed++
		} else {
			batch.FeedsFailed++
		}
		batch.OpportunitiesCreated += run.OpportunitiesCreated
		batch.PostsCreated += run.PostsCreated
		batch.DuplicatesSkipped += run.DuplicatesSkipped
		batch.AIRejections += run.AIRejections
	}

	return batch, nil
}

// ReactivateFeed clears the error state of a deactivated feed. Dedup state
// is untouched.
func (o *Orchestrator) ReactivateFeed(feedID string) (bool, error) {
	return o.feeds.Reactivate(feedID)
}

// ClearDuplicates purges the feed's dedup records and resets its counters
// and pagination offset so the feed can be fully rescanned.
func (o *Orchestrator) ClearDuplicates(feedID string) (*ClearResult, error) {
	cleared, err := o.dedup.ClearForFeed(feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to clear duplicates: %w", err)
	}

	if err := o.feeds.ResetRunCounters(feedID); err != nil {
		return nil, fmt.Errorf("failed to reset run counters: %w", err)
	}

	return &ClearResult{EntitiesCleared: cleared, OffsetReset: true}, nil
}
