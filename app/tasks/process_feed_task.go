package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dbelyaev/oppradar/app/pipeline"
)

type ProcessFeedTask struct {
	Task
	orchestrator *pipeline.Orchestrator
}

func NewProcessFeedTask(feedID string, orchestrator *pipeline.Orchestrator) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:         NewTask(TaskTypeProcessFeed, feedID),
		orchestrator: orchestrator,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.orchestrator.ProcessFeed(ctx, t.FeedID)
	if err != nil {
		return fmt.Errorf("failed to process feed: %w", err)
	}

	slog.Info("Task completed",
		"type", "ProcessFeed",
		"feed", result.FeedName,
		"duration", t.GetDuration(),
		"items", result.ItemsProcessed,
		"opportunities", result.OpportunitiesCreated,
		"posts", result.PostsCreated,
		"duplicates", result.DuplicatesSkipped,
		"ai_rejections", result.AIRejections,
		"errors", len(result.Errors))

	return nil
}
