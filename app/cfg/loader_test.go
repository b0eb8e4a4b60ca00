package cfg

import (
	"testing"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}
}

func TestConfigFields(t *testing.T) {
	cfg := &Cfg{
		Port:              "8080",
		BaseUrl:           "https://oppradar.example.com",
		UserAgent:         "Test Agent",
		WorkerCount:       5,
		SchedulerInterval: 30,
		APIAccessKey:      "test-key",
		Version:           "test-version",
		SourcesDir:        "./sources",
		DBPath:            "./test.db",
		AIModel:           "gpt-4o-mini",
		QualityThreshold:  0.6,
		MaxPostsPerRun:    10,
		DaysAfterDeadline: 7,
		Timezone:          "UTC",
		Debug:             true,
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port '8080', got '%s'", cfg.Port)
	}
	if cfg.WorkerCount != 5 {
		t.Errorf("Expected worker count 5, got %d", cfg.WorkerCount)
	}
	if cfg.APIAccessKey != "test-key" {
		t.Errorf("Expected API key 'test-key', got '%s'", cfg.APIAccessKey)
	}
	if cfg.DBPath != "./test.db" {
		t.Errorf("Expected DB path './test.db', got '%s'", cfg.DBPath)
	}
	if cfg.AIModel != "gpt-4o-mini" {
		t.Errorf("Expected AI model 'gpt-4o-mini', got '%s'", cfg.AIModel)
	}
	if cfg.QualityThreshold != 0.6 {
		t.Errorf("Expected quality threshold 0.6, got %f", cfg.QualityThreshold)
	}
	if cfg.MaxPostsPerRun != 10 {
		t.Errorf("Expected max posts per run 10, got %d", cfg.MaxPostsPerRun)
	}
	if cfg.DaysAfterDeadline != 7 {
		t.Errorf("Expected days after deadline 7, got %d", cfg.DaysAfterDeadline)
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestSetAndGet(t *testing.T) {
	orig := globalCfg
	defer func() { globalCfg = orig }()

	c := &Cfg{Port: "9090"}
	Set(c)

	if Get().Port != "9090" {
		t.Errorf("Expected port '9090', got '%s'", Get().Port)
	}
}
