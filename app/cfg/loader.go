package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./oppradar.db" description:"Path to the SQLite database file"`

	// Application configuration
	SourcesDir        string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing feed source definition files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://oppradar.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// AI provider defaults
	AIBaseURL        string `long:"ai-base-url" env:"AI_BASE_URL" default:"https://api.openai.com/v1" description:"Base URL of the OpenAI-compatible provider"`
	AIAPIKey         string `long:"ai-api-key" env:"AI_API_KEY" description:"API key for the default AI provider"`
	AIModel          string `long:"ai-model" env:"AI_MODEL" default:"gpt-4o-mini" description:"Default AI model when a feed does not override it"`
	AIRequestTimeout int    `long:"ai-timeout" env:"AI_TIMEOUT" default:"60" description:"AI request timeout in seconds"`
	AIRatePerMinute  int    `long:"ai-rate-per-minute" env:"AI_RATE_PER_MINUTE" default:"30" description:"Maximum AI requests per minute"`

	// Pipeline defaults
	QualityThreshold  float64 `long:"quality-threshold" env:"QUALITY_THRESHOLD" default:"0.6" description:"Default confidence threshold when a feed does not override it"`
	MaxPostsPerRun    int     `long:"max-posts-per-run" env:"MAX_POSTS_PER_RUN" default:"10" description:"Maximum candidates emitted per feed run"`
	DaysAfterDeadline int     `long:"days-after-deadline" env:"DAYS_AFTER_DEADLINE" default:"7" description:"Grace period in days before expired opportunities are deleted"`
	LogRetention      int     `long:"log-retention" env:"LOG_RETENTION" default:"1000" description:"Maximum processing log entries to keep"`
	FetchTimeout      int     `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Feed fetch timeout in seconds"`
	ScrapeTimeout     int     `long:"scrape-timeout" env:"SCRAPE_TIMEOUT" default:"20" description:"Page scrape timeout in seconds"`
	NotifyWebhookURL  string  `long:"notify-webhook-url" env:"NOTIFY_WEBHOOK_URL" description:"Webhook URL for new-opportunity notifications (optional)"`
	MediaDir          string  `long:"media-dir" env:"MEDIA_DIR" default:"./media" description:"Directory for stored media files"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"OppRadar/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		SourcesDir:        raw.SourcesDir,
		Port:              raw.Port,
		BaseUrl:           raw.BaseUrl,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		APIAccessKey:      raw.APIAccessKey,
		AIBaseURL:         raw.AIBaseURL,
		AIAPIKey:          raw.AIAPIKey,
		AIModel:           raw.AIModel,
		AIRequestTimeout:  raw.AIRequestTimeout,
		AIRatePerMinute:   raw.AIRatePerMinute,
		QualityThreshold:  raw.QualityThreshold,
		MaxPostsPerRun:    raw.MaxPostsPerRun,
		DaysAfterDeadline: raw.DaysAfterDeadline,
		LogRetention:      raw.LogRetention,
		FetchTimeout:      raw.FetchTimeout,
		ScrapeTimeout:     raw.ScrapeTimeout,
		NotifyWebhookURL:  raw.NotifyWebhookURL,
		MediaDir:          raw.MediaDir,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
