package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dbelyaev/oppradar/app/database"
)

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.Count(); err == nil {
		health["feeds"] = feedCount
	}
	if activeCount, err := h.feedRepo.CountActive(); err == nil {
		health["active_feeds"] = activeCount
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{}

	if count, err := h.oppRepo.Count(); err == nil {
		stats["opportunities"] = count
	}
	if count, err := h.oppRepo.CountByStatus(database.StatusPublished); err == nil {
		stats["published"] = count
	}
	if count, err := h.oppRepo.CountByStatus(database.StatusDraft); err == nil {
		stats["drafts"] = count
	}
	if count, err := h.dedupRepo.Count(); err == nil {
		stats["seen_items"] = count
	}
	if count, err := h.feedRepo.Count(); err == nil {
		stats["feeds"] = count
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	feeds, err := h.feedRepo.ListActive()
	if err != nil {
		slog.Error("Database error", "operation", "list_feeds", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list feeds"})
		return
	}

	out := make([]map[string]interface{}, 0, len(feeds))
	for _, feed := range feeds {
		out = append(out, map[string]interface{}{
			"id":                 feed.ID,
			"name":               feed.Name,
			"url":                feed.URL,
			"opportunity_type":   feed.OpportunityType,
			"status":             feed.Status,
			"priority":           feed.Priority,
			"auto_publish":       feed.AutoPublish,
			"enable_ai":          feed.EnableAI,
			"enable_scraping":    feed.EnableScraping,
			"quality_threshold":  feed.QualityThreshold,
			"total_processed":    feed.TotalProcessed,
			"total_published":    feed.TotalPublished,
			"url_list_offset":    feed.URLListOffset,
			"consecutive_errors": feed.ConsecutiveErrors,
			"processing_status":  feed.ProcessingStatus,
			"last_fetched_at":    feed.LastFetchedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"feeds": out, "count": len(out)})
}

func (h *Handler) APIProcessFeed(c *gin.Context) {
	id := c.Param("id")

	result, err := h.orchestrator.ProcessFeed(c.Request.Context(), id)
	if err != nil {
		slog.Error("Feed processing refused", "feed", id, "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIProcessAllFeeds(c *gin.Context) {
	batch, err := h.orchestrator.ProcessAllFeeds(c.Request.Context())
	if err != nil {
		slog.Error("Batch processing failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *Handler) APIReactivateFeed(c *gin.Context) {
	id := c.Param("id")

	ok, err := h.orchestrator.ReactivateFeed(id)
	if err != nil {
		slog.Error("Reactivation failed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reactivated": true})
}

func (h *Handler) APIClearDuplicates(c *gin.Context) {
	id := c.Param("id")

	result, err := h.orchestrator.ClearDuplicates(id)
	if err != nil {
		slog.Error("Clear duplicates failed", "feed", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) APICleanup(c *gin.Context) {
	result := h.expirer.Run(time.Now().UTC())
	c.JSON(http.StatusOK, result)
}

func (h *Handler) APIExpirationStats(c *gin.Context) {
	stats, err := h.expirer.ExpirationStats(time.Now().UTC())
	if err != nil {
		slog.Error("Expiration stats failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIRecentLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}

	entries, err := h.logs.Recent(limit)
	if err != nil {
		slog.Error("Log query failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	levelFilter := c.Query("level")

	out := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		if levelFilter != "" && entry.Level != levelFilter {
			continue
		}
		out = append(out, map[string]interface{}{
			"level":      entry.Level,
			"message":    entry.Message,
			"feed_id":    entry.FeedID,
			"created_at": entry.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"entries": out, "count": len(out)})
}

// Only known settings keys are accepted; unknown keys are reported back
// without being stored.
var allowedSettings = map[string]bool{
	database.SettingQualityThreshold:  true,
	database.SettingDaysAfterDeadline: true,
	database.SettingMaxPostsPerRun:    true,
	database.SettingLogRetention:      true,
	database.SettingMaxAgeByType:      true,
	database.SettingCrossFeedDedup:    true,
}

func (h *Handler) APIUpdateSettings(c *gin.Context) {
	var payload map[string]string
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
		return
	}

	accepted := make(map[string]string, len(payload))
	var rejected []string
	for key, value := range payload {
		if allowedSettings[key] {
			accepted[key] = value
		} else {
			rejected = append(rejected, key)
		}
	}

	if len(accepted) > 0 {
		if err := h.settings.SetMany(accepted); err != nil {
			slog.Error("Settings update failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"updated": len(accepted), "rejected": rejected})
}
