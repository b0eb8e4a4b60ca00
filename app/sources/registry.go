package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/dbelyaev/oppradar/app/database"
)

// Registry loads feed source definitions from a directory of YML files and
// keeps them cached in memory. Filenames double as source names.
type Registry struct {
	sourcesDir string
	cache      map[string]*Definition
	mu         sync.RWMutex
}

func NewRegistry(sourcesDir string) *Registry {
	return &Registry{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Definition),
	}
}

func (r *Registry) Run() error {
	if _, err := os.Stat(r.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(r.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		def, err := r.Load(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source definition loaded", "source", name, "type", def.Type,
			"enabled", def.Settings.Enabled, "cron_interval", def.Settings.CronInterval)
	}

	return nil
}

func (r *Registry) Load(name string) (*Definition, error) {
	file := filepath.Join(r.sourcesDir, name+".yml")
	def, err := r.parse(file)
	if err != nil {
		return nil, err
	}

	def.Name = name

	if err := r.validate(def); err != nil {
		return nil, fmt.Errorf("invalid source %s: %w", file, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[def.Name] = def

	return def, nil
}

func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.cache[name]
	if !ok {
		return nil, fmt.Errorf("source definition with name '%s' not found", name)
	}
	return def, nil
}

func (r *Registry) All() map[string]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*Definition, len(r.cache))
	for k, v := range r.cache {
		out[k] = v
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Sync upserts every cached definition into the feed registry table.
// Runtime state of already registered feeds is preserved by the upsert.
func (r *Registry) Sync(repo database.FeedRepository) error {
	for name, def := range r.All() {
		_, err := repo.Upsert(database.UpsertFeedParams{
			Name:              name,
			URL:               def.URL,
			OpportunityType:   def.Type,
			Enabled:           def.Settings.Enabled,
			EnableScraping:    def.Settings.EnableScraping,
			EnableAI:          def.Settings.EnableAI,
			AutoPublish:       def.Settings.AutoPublish,
			AllowRepublishing: def.Settings.AllowRepublishing,
			AIProvider:        def.Settings.AIProvider,
			AIModel:           def.Settings.AIModel,
			QualityThreshold:  def.Settings.QualityThreshold,
			Priority:          def.Settings.Priority,
			CronInterval:      def.Settings.CronInterval,
			FallbackImageURL:  def.Settings.FallbackImageURL,
		})
		if err != nil {
			return fmt.Errorf("failed to register source %s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) parse(file string) (*Definition, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if def.Settings.CronInterval == 0 {
		def.Settings.CronInterval = 3600
	}
	if def.Settings.QualityThreshold == 0 {
		def.Settings.QualityThreshold = 0.6
	}
	if def.Settings.AIProvider == "" {
		def.Settings.AIProvider = "openai"
	}

	return &def, nil
}

func (r *Registry) validate(def *Definition) error {
	if def == nil {
		return fmt.Errorf("definition is nil")
	}

	requiredFields := map[string]string{
		"source name":      def.Name,
		"source URL":       def.URL,
		"opportunity type": def.Type,
	}

	for fieldName, fieldValue := range requiredFields {
		if fieldValue == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
	}

	if def.Settings.QualityThreshold < 0 || def.Settings.QualityThreshold > 1 {
		return fmt.Errorf("quality threshold must be between 0 and 1")
	}
	if def.Settings.CronInterval < 0 {
		return fmt.Errorf("cron interval must be non-negative")
	}
	if def.Settings.Priority < 0 {
		return fmt.Errorf("priority must be non-negative")
	}

	return nil
}
