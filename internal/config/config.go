// Package config provides configuration management for the worker binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrInvalidScale             = errors.New("normalizer.scale must be positive")
	ErrInvalidPattern           = errors.New("normalizer.image_key_patterns contains an invalid pattern")
	ErrMissingSuffix            = errors.New("storage.normalized_suffix is required")
	ErrInvalidMaxAttempts       = errors.New("ingest.retry.max_attempts must be at least 1")
	ErrInvalidInitialDelay      = errors.New("ingest.retry.initial_delay_ms must be non-negative")
	ErrInvalidBackoffMultiplier = errors.New("ingest.retry.backoff_multiplier must be >= 1.0")
	ErrInvalidTimeout           = errors.New("ingest.retry.timeout_sec must be at least 1")
	ErrInvalidJPEGQuality       = errors.New("export.jpeg_quality must be between 1 and 100")
	ErrInvalidLogLevel          = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete worker configuration.
type Config struct {
	Worker WorkerConfig `yaml:"worker"`
}

// WorkerConfig contains the per-stage settings.
type WorkerConfig struct {
	Storage    StorageConfig    `yaml:"storage"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
	Server     ServerConfig     `yaml:"server"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Export     ExportConfig     `yaml:"export"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// StorageConfig controls path derivation and manifest handling.
type StorageConfig struct {
	// NormalizedSuffix is appended to the input's parent segment and to
	// the archive filename to derive output locations.
	NormalizedSuffix string `yaml:"normalized_suffix"`
	// ClassNamesFile is the manifest copied alongside the archive when
	// present at the input location.
	ClassNamesFile string `yaml:"class_names_file"`
}

// NormalizerConfig controls which arrays get rescaled and by what factor.
type NormalizerConfig struct {
	ImageKeyPatterns []string `yaml:"image_key_patterns"`
	Scale            float64  `yaml:"scale"`
}

// ServerConfig controls the trigger server.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	LogFormat string `yaml:"log_format"`
}

// IngestConfig controls the Fashion-MNIST fetcher.
type IngestConfig struct {
	BaseURL string      `yaml:"base_url"`
	Retry   RetryPolicy `yaml:"retry"`
}

// RetryPolicy defines retry behavior for ingest downloads. The pipeline
// itself never retries; a failed step stops the whole run.
type RetryPolicy struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
	TimeoutSec        int     `yaml:"timeout_sec"`
}

// ExportConfig controls JPEG + CSV manifest export.
type ExportConfig struct {
	JPEGQuality int `yaml:"jpeg_quality"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Storage: StorageConfig{
				NormalizedSuffix: "_normalized",
				ClassNamesFile:   "class_names.json",
			},
			Normalizer: NormalizerConfig{
				ImageKeyPatterns: []string{"X_*"},
				Scale:            255.0,
			},
			Server: ServerConfig{
				Addr:      ":8080",
				LogFormat: "text",
			},
			Ingest: IngestConfig{
				BaseURL: "https://storage.googleapis.com/tensorflow/tf-keras-datasets",
				Retry: RetryPolicy{
					MaxAttempts:       3,
					InitialDelayMs:    500,
					MaxDelayMs:        30000,
					BackoffMultiplier: 2.0,
					TimeoutSec:        60,
				},
			},
			Export: ExportConfig{
				JPEGQuality: 90,
			},
			Logging: LoggingConfig{
				Level: "info",
			},
		},
	}
}

// LoadConfig loads configuration from a YAML file, applying defaults for
// anything unset.
func LoadConfig(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills fields an explicit file left zero-valued.
func (c *Config) applyDefaults() {
	def := Default()

	if c.Worker.Storage.NormalizedSuffix == "" {
		c.Worker.Storage.NormalizedSuffix = def.Worker.Storage.NormalizedSuffix
	}

	if c.Worker.Storage.ClassNamesFile == "" {
		c.Worker.Storage.ClassNamesFile = def.Worker.Storage.ClassNamesFile
	}

	if len(c.Worker.Normalizer.ImageKeyPatterns) == 0 {
		c.Worker.Normalizer.ImageKeyPatterns = def.Worker.Normalizer.ImageKeyPatterns
	}

	if c.Worker.Normalizer.Scale == 0 {
		c.Worker.Normalizer.Scale = def.Worker.Normalizer.Scale
	}

	if c.Worker.Server.Addr == "" {
		c.Worker.Server.Addr = def.Worker.Server.Addr
	}

	if c.Worker.Server.LogFormat == "" {
		c.Worker.Server.LogFormat = def.Worker.Server.LogFormat
	}

	if c.Worker.Ingest.BaseURL == "" {
		c.Worker.Ingest.BaseURL = def.Worker.Ingest.BaseURL
	}

	// Backfill retry fields one by one so a file overriding a single
	// field still inherits the rest.
	if c.Worker.Ingest.Retry.MaxAttempts == 0 {
		c.Worker.Ingest.Retry.MaxAttempts = def.Worker.Ingest.Retry.MaxAttempts
	}

	if c.Worker.Ingest.Retry.InitialDelayMs == 0 {
		c.Worker.Ingest.Retry.InitialDelayMs = def.Worker.Ingest.Retry.InitialDelayMs
	}

	if c.Worker.Ingest.Retry.MaxDelayMs == 0 {
		c.Worker.Ingest.Retry.MaxDelayMs = def.Worker.Ingest.Retry.MaxDelayMs
	}

	if c.Worker.Ingest.Retry.BackoffMultiplier == 0 {
		c.Worker.Ingest.Retry.BackoffMultiplier = def.Worker.Ingest.Retry.BackoffMultiplier
	}

	if c.Worker.Ingest.Retry.TimeoutSec == 0 {
		c.Worker.Ingest.Retry.TimeoutSec = def.Worker.Ingest.Retry.TimeoutSec
	}

	if c.Worker.Export.JPEGQuality == 0 {
		c.Worker.Export.JPEGQuality = def.Worker.Export.JPEGQuality
	}

	if c.Worker.Logging.Level == "" {
		c.Worker.Logging.Level = def.Worker.Logging.Level
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Worker.Storage.NormalizedSuffix == "" {
		return ErrMissingSuffix
	}

	if c.Worker.Normalizer.Scale <= 0 {
		return ErrInvalidScale
	}

	for _, pattern := range c.Worker.Normalizer.ImageKeyPatterns {
		if _, err := path.Match(pattern, "probe"); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}

	rp := c.Worker.Ingest.Retry
	if rp.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if rp.InitialDelayMs < 0 {
		return ErrInvalidInitialDelay
	}

	if rp.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}

	if rp.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if q := c.Worker.Export.JPEGQuality; q < 1 || q > 100 {
		return ErrInvalidJPEGQuality
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Worker.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rp.InitialDelayMs)
	for i := 2; i < attempt; i++ {
		delayMs *= rp.BackoffMultiplier
	}

	if int(delayMs) > rp.MaxDelayMs {
		delayMs = float64(rp.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Patterns: %v, Scale: %g, Suffix: %s}",
		c.Worker.Normalizer.ImageKeyPatterns,
		c.Worker.Normalizer.Scale,
		c.Worker.Storage.NormalizedSuffix,
	)
}
