package api

import (
	"github.com/dbelyaev/oppradar/app/cleanup"
	"github.com/dbelyaev/oppradar/app/database"
	"github.com/dbelyaev/oppradar/app/metrics"
	"github.com/dbelyaev/oppradar/app/pipeline"
)

type Handler struct {
	feedRepo     database.FeedRepository
	oppRepo      database.OpportunityRepository
	dedupRepo    database.DedupRepository
	settings     database.SettingsRepository
	logs         database.LogRepository
	orchestrator *pipeline.Orchestrator
	expirer      *cleanup.Expirer
	collector    *metrics.Collector
}

func NewHandler(feedRepo database.FeedRepository, oppRepo database.OpportunityRepository,
	dedupRepo database.DedupRepository, settings database.SettingsRepository,
	logs database.LogRepository, orchestrator *pipeline.Orchestrator,
	expirer *cleanup.Expirer, collector *metrics.Collector) *Handler {
	return &Handler{
		feedRepo:     feedRepo,
		oppRepo:      oppRepo,
		dedupRepo:    dedupRepo,
		settings:     settings,
		logs:         logs,
		orchestrator: orchestrator,
		expirer:      expirer,
		collector:    collector,
	}
}
