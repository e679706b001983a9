package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/mdchunk/internal/chunker"
)

type Config struct {
	Port string

	// Pathstore publishing (optional)
	PathstoreURL    string
	PathstoreAPIKey string

	// Auth
	APIKey string

	// Worker pool
	WorkerCount       int
	MaxQueueSize      int
	MaxConcurrentDocs int

	// Upload limits
	MaxUploadBytes int64

	// Chunking
	ChunkerConfigPath string
	Chunker           chunker.Config

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// Load reads the service configuration from the environment. The chunker
// configuration starts from defaults, is replaced by the CHUNKER_CONFIG file
// when set, and then takes the individual CHUNK* overrides.
func Load() (Config, error) {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		PathstoreURL:    os.Getenv("PATHSTORE_URL"),
		PathstoreAPIKey: os.Getenv("PATHSTORE_API_KEY"),

		APIKey: os.Getenv("MDCHUNK_API_KEY"),

		WorkerCount:       envInt("WORKER_COUNT", 4),
		MaxQueueSize:      envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentDocs: envInt("MAX_CONCURRENT_DOCS", 8),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		ChunkerConfigPath: os.Getenv("CHUNKER_CONFIG"),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentDocs <= 0 {
		cfg.MaxConcurrentDocs = 8
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	cc := chunker.DefaultConfig()
	if cfg.ChunkerConfigPath != "" {
		var err error
		if cc, err = LoadChunkerConfig(cfg.ChunkerConfigPath); err != nil {
			return cfg, err
		}
	}
	cfg.Chunker = applyChunkerEnv(cc)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("MDCHUNK_API_KEY is required")
	}
	if c.PathstoreURL != "" && c.PathstoreAPIKey == "" {
		return fmt.Errorf("PATHSTORE_API_KEY is required when PATHSTORE_URL is set")
	}
	if _, err := c.Chunker.Validate(); err != nil {
		return fmt.Errorf("chunker config: %w", err)
	}
	return nil
}

// LoadChunkerConfig reads a YAML chunker configuration. Keys missing from the
// file keep their default values.
func LoadChunkerConfig(path string) (chunker.Config, error) {
	cfg := chunker.DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read chunker config: %w", err)
	}
	return ParseChunkerConfig(data)
}

// ParseChunkerConfig decodes YAML over the default chunker configuration.
func ParseChunkerConfig(data []byte) (chunker.Config, error) {
	cfg := chunker.DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse chunker config: %w", err)
	}
	return cfg, nil
}

func applyChunkerEnv(c chunker.Config) chunker.Config {
	c.MaxChunkSize = envInt("MAX_CHUNK_SIZE", c.MaxChunkSize)
	c.MinChunkSize = envInt("MIN_CHUNK_SIZE", c.MinChunkSize)
	c.OverlapSize = envInt("OVERLAP_SIZE", c.OverlapSize)
	c.EnableOverlap = envBool("ENABLE_OVERLAP", c.EnableOverlap)
	c.Strategy = envOr("CHUNK_STRATEGY", c.Strategy)
	return c
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
