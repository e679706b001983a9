package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgallion1/mdchunk/internal/chunker"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "WORKER_COUNT", "JOB_TTL", "CHUNKER_CONFIG", "MAX_CHUNK_SIZE", "CHUNK_STRATEGY"} {
		t.Setenv(k, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d", cfg.WorkerCount)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("JobTTL = %v", cfg.JobTTL)
	}
	if cfg.Chunker.MaxChunkSize != chunker.DefaultConfig().MaxChunkSize {
		t.Errorf("MaxChunkSize = %d", cfg.Chunker.MaxChunkSize)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CHUNKER_CONFIG", "")
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("JOB_TTL", "15m")
	t.Setenv("MAX_CHUNK_SIZE", "2000")
	t.Setenv("ENABLE_OVERLAP", "false")
	t.Setenv("CHUNK_STRATEGY", "table")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WorkerCount != 4 {
		t.Errorf("WorkerCount = %d, want fallback 4", cfg.WorkerCount)
	}
	if cfg.JobTTL != 15*time.Minute {
		t.Errorf("JobTTL = %v", cfg.JobTTL)
	}
	if cfg.Chunker.MaxChunkSize != 2000 || cfg.Chunker.EnableOverlap || cfg.Chunker.Strategy != "table" {
		t.Errorf("chunker overrides not applied: %+v", cfg.Chunker)
	}
}

func TestLoadChunkerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunker.yaml")
	data := `
max_chunk_size: 1000
selection_mode: weighted
thresholds:
  table_count: 2
table_grouping:
  enabled: true
  max_distance_lines: 4
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadChunkerConfig(path)
	if err != nil {
		t.Fatalf("LoadChunkerConfig: %v", err)
	}
	if cfg.MaxChunkSize != 1000 || cfg.Mode != chunker.ModeWeighted {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.Thresholds.TableCount != 2 || cfg.Thresholds.CodeRatio != 0.3 {
		t.Errorf("thresholds = %+v", cfg.Thresholds)
	}
	if !cfg.TableGrouping.Enabled || cfg.TableGrouping.MaxDistanceLines != 4 || cfg.TableGrouping.MaxTablesPerGroup != 5 {
		t.Errorf("table grouping = %+v", cfg.TableGrouping)
	}

	t.Setenv("CHUNKER_CONFIG", path)
	t.Setenv("MAX_CHUNK_SIZE", "")
	t.Setenv("CHUNK_STRATEGY", "")
	svc, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if svc.Chunker.MaxChunkSize != 1000 {
		t.Errorf("file not applied: %d", svc.Chunker.MaxChunkSize)
	}
}

func TestParseChunkerConfigErrors(t *testing.T) {
	if _, err := ParseChunkerConfig([]byte("max_chunk_sise: 10\n")); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := ParseChunkerConfig(nil); err != nil {
		t.Errorf("empty file: %v", err)
	}
	if _, err := LoadChunkerConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	cfg := Config{Chunker: chunker.DefaultConfig()}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without API key")
	}
	cfg.APIKey = "k"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
	cfg.PathstoreURL = "http://localhost:8080"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error without pathstore key")
	}
	cfg.PathstoreAPIKey = "p"
	cfg.Chunker.Strategy = "bogus"
	if err := cfg.Validate(); !chunker.IsConfigError(err) {
		t.Errorf("expected chunker config error, got %v", err)
	}
}
