package cfg

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	SourcesDir        string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string

	// AI provider defaults (per-feed overrides take precedence)
	AIBaseURL        string
	AIAPIKey         string
	AIModel          string
	AIRequestTimeout int
	AIRatePerMinute  int

	// Pipeline defaults
	QualityThreshold  float64
	MaxPostsPerRun    int
	DaysAfterDeadline int
	LogRetention      int
	FetchTimeout      int
	ScrapeTimeout     int
	NotifyWebhookURL  string
	MediaDir          string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
