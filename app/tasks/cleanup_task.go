package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/dbelyaev/oppradar/app/cleanup"
)

type CleanupTask struct {
	Task
	expirer *cleanup.Expirer
}

func NewCleanupTask(expirer *cleanup.Expirer) *CleanupTask {
	return &CleanupTask{
		Task:    NewTask(TaskTypeCleanup, ""),
		expirer: expirer,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result := t.expirer.Run(time.Now().UTC())

	slog.Info("Task completed",
		"type", "Cleanup",
		"duration", t.GetDuration(),
		"deleted", result.DeletedCount,
		"skipped_evergreen", result.SkippedEvergreen,
		"errors", len(result.Errors))

	return nil
}
