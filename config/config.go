package config

import (
	"fmt"
	"runtime"
)

// Config holds the full environment configuration of a pipeline run.
type Config struct {
	// Concurrency is the worker-pool width for all parallel stages.
	// Defaults to the host CPU count, floor 1.
	Concurrency int `env:"CONCURRENCY"`

	LogLevel string `env:"LOG_LEVEL" default:"warning"`

	// NoUpload disables object-store uploads and remote existence probes.
	// Any non-empty value counts as set.
	NoUpload bool `env:"NO_UPLOAD"`

	PCDNURLBase  string `env:"PCDN_URL_BASE" default:"https://pcdn.brave.software"`
	PubS3Bucket  string `env:"PUB_S3_BUCKET" default:"brave-today-cdn-development"`
	PrivS3Bucket string `env:"PRIV_S3_BUCKET" default:"brave-private-cdn-development"`
	SourcesFile  string `env:"SOURCES_FILE" default:"sources"`
	SentryURL    string `env:"SENTRY_URL"`
}

// Load builds the configuration from defaults and environment overrides.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadFromEnvironment(cfg); err != nil {
		return nil, err
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = runtime.NumCPU()
		if cfg.Concurrency < 1 {
			cfg.Concurrency = 1
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func validate(cfg *Config) error {
	if !cfg.NoUpload {
		if cfg.PubS3Bucket == "" {
			return fmt.Errorf("PUB_S3_BUCKET must be set when uploads are enabled")
		}
		if cfg.PrivS3Bucket == "" {
			return fmt.Errorf("PRIV_S3_BUCKET must be set when uploads are enabled")
		}
	}
	if cfg.SourcesFile == "" {
		return fmt.Errorf("SOURCES_FILE must not be empty")
	}
	return nil
}
