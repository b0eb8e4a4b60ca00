// Package metrics collects and exposes Prometheus metrics for the pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records pipeline outcomes for the /metrics endpoint.
type Collector struct {
	registry *prometheus.Registry

	feedRuns           *prometheus.CounterVec
	itemsProcessed     prometheus.Counter
	opportunitiesTotal prometheus.Counter
	postsTotal         prometheus.Counter
	duplicatesSkipped  prometheus.Counter
	aiRejections       *prometheus.CounterVec
	cleanupDeleted     *prometheus.CounterVec
	feedRunDuration    prometheus.Histogram
	cleanupRunDuration prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		feedRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppradar_feed_runs_total",
			Help: "Feed processing runs by result.",
		}, []string{"result"}),
		itemsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_items_processed_total",
			Help: "Candidate items pulled from feeds.",
		}),
		opportunitiesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_opportunities_created_total",
			Help: "Opportunity records created by the publisher.",
		}),
		postsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_posts_created_total",
			Help: "Evergreen post records created by the publisher.",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "oppradar_duplicates_skipped_total",
			Help: "Candidates skipped as already seen.",
		}),
		aiRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppradar_ai_rejections_total",
			Help: "Candidates dropped at the AI gate, by reason.",
		}, []string{"reason"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oppradar_cleanup_deleted_total",
			Help: "Opportunities deleted by the expirer, by type.",
		}, []string{"opportunity_type"}),
		feedRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oppradar_feed_run_duration_seconds",
			Help:    "Duration of a single feed processing run.",
			Buckets: prometheus.DefBuckets,
		}),
		cleanupRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "oppradar_cleanup_run_duration_seconds",
			Help:    "Duration of a cleanup run.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	c.registry.MustRegister(
		c.feedRuns,
		c.itemsProcessed,
		c.opportunitiesTotal,
		c.postsTotal,
		c.duplicatesSkipped,
		c.aiRejections,
		c.cleanupDeleted,
		c.feedRunDuration,
		c.cleanupRunDuration,
	)

	return c
}

func (c *Collector) RecordFeedRun(success bool, duration time.Duration) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.feedRuns.WithLabelValues(result).Inc()
	c.feedRunDuration.Observe(duration.Seconds())
}

func (c *Collector) RecordItemsProcessed(count int) {
	c.itemsProcessed.Add(float64(count))
}

func (c *Collector) RecordOpportunityCreated() {
	c.opportunitiesTotal.Inc()
}

func (c *Collector) RecordPostCreated() {
	c.postsTotal.Inc()
}

func (c *Collector) RecordDuplicateSkipped() {
	c.duplicatesSkipped.Inc()
}

// RecordAIRejection takes "unavailable" or "rejected" so availability
// incidents can be separated from quality rejections.
func (c *Collector) RecordAIRejection(reason string) {
	c.aiRejections.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordCleanupDeleted(opportunityType string, count int) {
	c.cleanupDeleted.WithLabelValues(opportunityType).Add(float64(count))
}

func (c *Collector) RecordCleanupRun(duration time.Duration) {
	c.cleanupRunDuration.Observe(duration.Seconds())
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
