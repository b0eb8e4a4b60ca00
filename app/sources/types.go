package sources

// Source definition types

type Definition struct {
	Name     string   `yaml:"-"` // Derived from filename (without .yml extension)
	URL      string   `yaml:"url"`
	Type     string   `yaml:"type"`
	Settings Settings `yaml:"settings"`
}

type Settings struct {
	Enabled           bool    `yaml:"enabled"`
	EnableScraping    bool    `yaml:"enable_scraping"`
	EnableAI          bool    `yaml:"enable_ai"`
	AutoPublish       bool    `yaml:"auto_publish"`
	AllowRepublishing bool    `yaml:"allow_republishing"`
	AIProvider        string  `yaml:"ai_provider"`
	AIModel           string  `yaml:"ai_model"`
	QualityThreshold  float64 `yaml:"quality_threshold"`
	Priority          int     `yaml:"priority"`
	CronInterval      int     `yaml:"cron_interval"` // seconds
	FallbackImageURL  string  `yaml:"fallback_image_url"`
}
