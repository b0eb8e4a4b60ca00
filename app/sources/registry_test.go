package sources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRegistryLoadValidDefinition(t *testing.T) {
	tempDir := t.TempDir()

	content := `
url: "https://example.com/feed.xml"
type: "giveaway"

settings:
  enabled: true
  enable_scraping: true
  enable_ai: true
  auto_publish: true
  quality_threshold: 0.7
  priority: 5
  cron_interval: 1800
`

	err := os.WriteFile(filepath.Join(tempDir, "giveaways.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	if registry.Count() != 1 {
		t.Errorf("Expected 1 definition, got %d", registry.Count())
	}

	def, err := registry.Get("giveaways")
	if err != nil {
		t.Fatal(err)
	}

	if def.Name != "giveaways" {
		t.Errorf("Expected name 'giveaways', got '%s'", def.Name)
	}
	if def.URL != "https://example.com/feed.xml" {
		t.Errorf("Expected URL 'https://example.com/feed.xml', got '%s'", def.URL)
	}
	if def.Type != "giveaway" {
		t.Errorf("Expected type 'giveaway', got '%s'", def.Type)
	}
	if def.Settings.QualityThreshold != 0.7 {
		t.Errorf("Expected quality threshold 0.7, got %v", def.Settings.QualityThreshold)
	}
	if def.Settings.CronInterval != 1800 {
		t.Errorf("Expected cron interval 1800, got %d", def.Settings.CronInterval)
	}
}

func TestRegistryDefaults(t *testing.T) {
	tempDir := t.TempDir()

	content := `
url: "https://example.com/feed.xml"
type: "scholarship"

settings:
  enabled: true
`

	err := os.WriteFile(filepath.Join(tempDir, "minimal.yml"), []byte(content), 0644)
	if err != nil {
		t.Fatal(err)
	}

	registry := NewRegistry(tempDir)
	if err := registry.Run(); err != nil {
		t.Fatal(err)
	}

	def, err := registry.Get("minimal")
	if err != nil {
		t.Fatal(err)
	}

	if def.Settings.CronInterval != 3600 {
		t.Errorf("Expected default cron interval 3600, got %d", def.Settings.CronInterval)
	}
	if def.Settings.QualityThreshold != 0.6 {
		t.Errorf("Expected default quality threshold 0.6, got %v", def.Settings.QualityThreshold)
	}
	if def.Settings.AIProvider != "openai" {
		t.Errorf("Expected default AI provider 'openai', got '%s'", def.Settings.AIProvider)
	}
}

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	tempDir := t.TempDir()

	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing-url",
			content: `
type: "giveaway"
settings:
  enabled: true
`,
			wantErr: "source URL is required",
		},
		{
			name: "missing-type",
			content: `
url: "https://example.com/feed.xml"
settings:
  enabled: true
`,
			wantErr: "opportunity type is required",
		},
		{
			name: "bad-threshold",
			content: `
url: "https://example.com/feed.xml"
type: "giveaway"
settings:
  enabled: true
  quality_threshold: 1.5
`,
			wantErr: "quality threshold must be between 0 and 1",
		},
	}

	for _, tc := range cases {
		err := os.WriteFile(filepath.Join(tempDir, tc.name+".yml"), []byte(tc.content), 0644)
		if err != nil {
			t.Fatal(err)
		}

		registry := NewRegistry(tempDir)
		_, err = registry.Load(tc.name)
		if err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
			continue
		}
		if !strings.Contains(err.Error(), tc.wantErr) {
			t.Errorf("%s: expected error containing %q, got %v", tc.name, tc.wantErr, err)
		}

		os.Remove(filepath.Join(tempDir, tc.name+".yml"))
	}
}

func TestRegistryMissingDirIsNotAnError(t *testing.T) {
	registry := NewRegistry(filepath.Join(t.TempDir(), "does-not-exist"))
	if err := registry.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got %v", err)
	}
	if registry.Count() != 0 {
		t.Errorf("Expected empty registry, got %d definitions", registry.Count())
	}
}
