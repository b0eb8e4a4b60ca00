package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbelyaev/oppradar/app/ai"
	"github.com/dbelyaev/oppradar/app/api"
	"github.com/dbelyaev/oppradar/app/blob"
	"github.com/dbelyaev/oppradar/app/cfg"
	"github.com/dbelyaev/oppradar/app/cleanup"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/feed"
	"github.com/dbelyaev/oppradar/app/metrics"
	"github.com/dbelyaev/oppradar/app/notify"
	"github.com/dbelyaev/oppradar/app/pipeline"
	"github.com/dbelyaev/oppradar/app/publish"
	"github.com/dbelyaev/oppradar/app/scrape"
	"github.com/dbelyaev/oppradar/app/sources"
	"github.com/dbelyaev/oppradar/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting OppRadar server", "version", appCfg.Version)

	db, err := database.Open(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	released, err := feedRepo.ReleaseStaleLocks()
	if err != nil {
		log.Fatalf("Failed to release stale feed locks: %v", err)
	}
	if released > 0 {
		slog.Warn("Released processing locks left by an interrupted run", "count", released)
	}

	dedupRepo := database.NewDedupRepository(db)
	oppRepo := database.NewOpportunityRepository(db)
	settingsRepo := database.NewSettingsRepository(db)
	logRepo := database.NewLogRepository(db)

	registry := sources.NewRegistry(appCfg.SourcesDir)
	if err := registry.Run(); err != nil {
		log.Fatalf("Failed to load source definitions: %v", err)
	}
	if err := registry.Sync(feedRepo); err != nil {
		log.Fatalf("Failed to register sources: %v", err)
	}
	slog.Info("Sources registered", "count", registry.Count())

	collector := metrics.NewCollector()

	providers := map[string]ai.Provider{
		"openai": ai.NewOpenAIClient(
			appCfg.AIBaseURL,
			appCfg.AIAPIKey,
			time.Duration(appCfg.AIRequestTimeout)*time.Second,
			appCfg.AIRatePerMinute,
		),
	}
	gate := ai.NewGate(providers, "openai", appCfg.AIModel)

	notifier := notify.NewNotifier(appCfg.NotifyWebhookURL)
	blobStore := blob.NewFSStore(appCfg.MediaDir, appCfg.BaseUrl)
	publisher := publish.NewPublisher(oppRepo, notifier, blobStore)
	fetcher := feed.NewFetcher(time.Duration(appCfg.FetchTimeout)*time.Second, appCfg.UserAgent)
	scraper := scrape.NewScraper(time.Duration(appCfg.ScrapeTimeout)*time.Second, appCfg.UserAgent)

	orchestrator := pipeline.NewOrchestrator(
		feedRepo, dedupRepo, settingsRepo, logRepo,
		fetcher, scraper, gate, publisher,
		collector, appCfg.WorkerCount,
	)
	expirer := cleanup.NewExpirer(oppRepo, settingsRepo, blobStore, collector)

	scheduler := tasks.NewScheduler(feedRepo, logRepo, settingsRepo, orchestrator, expirer)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started",
		"workers", appCfg.WorkerCount,
		"interval", appCfg.SchedulerInterval)

	handler := api.NewHandler(feedRepo, oppRepo, dedupRepo, settingsRepo, logRepo,
		orchestrator, expirer, collector)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}
