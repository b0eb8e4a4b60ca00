package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dbelyaev/oppradar/app/database"
)

type TrimLogTask struct {
	Task
	logs      database.LogRepository
	retention int
}

func NewTrimLogTask(logs database.LogRepository, retention int) *TrimLogTask {
	return &TrimLogTask{
		Task:      NewTask(TaskTypeTrimLog, ""),
		logs:      logs,
		retention: retention,
	}
}

func (t *TrimLogTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	removed, err := t.logs.Trim(t.retention)
	if err != nil {
		return fmt.Errorf("failed to trim processing log: %w", err)
	}

	if removed > 0 {
		slog.Debug("Task completed", "type", "TrimLog", "removed", removed)
	}
	return nil
}
