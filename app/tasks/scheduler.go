package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dbelyaev/oppradar/app/cfg"
	"github.com/dbelyaev/oppradar/app/cleanup"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/pipeline"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const cleanupInterval = 24 * time.Hour

type Scheduler struct {
	feedRepo     database.FeedRepository
	logRepo      database.LogRepository
	settings     database.SettingsRepository
	orchestrator *pipeline.Orchestrator
	expirer      *cleanup.Expirer
	interval     time.Duration
	workerCount  int
	logRetention int
	lastCleanup  time.Time
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	taskQueue    chan TaskInterface
}

func NewScheduler(feedRepo database.FeedRepository, logRepo database.LogRepository,
	settings database.SettingsRepository, orchestrator *pipeline.Orchestrator,
	expirer *cleanup.Expirer) TaskSchedulerInterface {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := cfg.Get()

	return &Scheduler{
		feedRepo:     feedRepo,
		logRepo:      logRepo,
		settings:     settings,
		orchestrator: orchestrator,
		expirer:      expirer,
		interval:     time.Duration(cfg.SchedulerInterval) * time.Second,
		workerCount:  cfg.WorkerCount,
		logRetention: cfg.LogRetention,
		ctx:          ctx,
		cancel:       cancel,
		taskQueue:    make(chan TaskInterface, 300),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels the context and waits for the workers to drain. The queue is
// never closed: untracked retry goroutines may still attempt an enqueue
// after shutdown, which must fail cleanly rather than panic.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

// enqueueTasks schedules a run for every feed whose cron interval has
// elapsed, plus the daily maintenance tasks.
func (s *Scheduler) enqueueTasks() {
	now := time.Now().UTC()

	due, err := s.feedRepo.ListDue(now)
	if err != nil {
		slog.Warn("Failed to list due feeds", "error", err)
	} else {
		for _, feed := range due {
			task := NewProcessFeedTask(feed.ID, s.orchestrator)
			if err := s.EnqueueTask(task); err != nil {
				slog.Warn("Failed to enqueue ProcessFeedTask", "feed", feed.Name, "error", err)
			}
		}
		if len(due) > 0 {
			slog.Debug("Due feeds enqueued", "count", len(due))
		}
	}

	if now.Sub(s.lastCleanup) >= cleanupInterval {
		s.lastCleanup = now
		if err := s.EnqueueTask(NewCleanupTask(s.expirer)); err != nil {
			slog.Warn("Failed to enqueue CleanupTask", "error", err)
		}

		retention := s.settings.GetInt(database.SettingLogRetention, s.logRetention)
		if err := s.EnqueueTask(NewTrimLogTask(s.logRepo, retention)); err != nil {
			slog.Warn("Failed to enqueue TrimLogTask", "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID,
		"type", string(task.GetType()), "id", task.GetID(),
		"retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries",
			"type", string(task.GetType()), "id", task.GetID(),
			"retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(),
			"last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
	if retryDelay > 30*time.Second {
		retryDelay = 30 * time.Second
	}

	slog.Warn("Task retry scheduled", "type", string(task.GetType()),
		"feed", task.GetFeedID(), "retry_count", task.GetRetryCount(),
		"max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		time.Sleep(retryDelay)
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry",
				"type", string(task.GetType()), "id", task.GetID())
			return
		default:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry",
					"type", string(task.GetType()), "id", task.GetID(),
					"retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
