// Package config provides configuration loading and validation for coldhome.
// Supports YAML files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for a coldhome run.
type Config struct {
	Archiver      ArchiverConfig      `yaml:"archiver"`
	ObjectStore   ObjectStoreConfig   `yaml:"objectStore"`
	Daemon        DaemonConfig        `yaml:"daemon"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ArchiverConfig controls candidate selection and the per-directory pipeline.
type ArchiverConfig struct {
	// RootDir is the directory whose immediate subdirectories are the
	// candidate user home directories.
	RootDir string `yaml:"rootDir"`

	// CutoffDays is the staleness cutoff: a home directory with no regular
	// file modified within this many days is considered inactive.
	CutoffDays int `yaml:"cutoffDays"`

	// ObjectPrefix is the object-store key prefix archives are uploaded
	// under, e.g. "archives/2026-spring".
	ObjectPrefix string `yaml:"objectPrefix"`

	// Delete enables writing the retrieval notice and removing the source
	// directory contents after a verified upload.
	Delete bool `yaml:"delete"`

	// DryRun reports what would be archived without building, uploading,
	// or deleting anything.
	DryRun bool `yaml:"dryRun"`

	// NoticeFileName is the name of the retrieval notice dropped into a
	// deleted home directory. The same name is ignored by the staleness
	// walk and excluded from archives.
	NoticeFileName string `yaml:"noticeFileName"`

	// Only restricts the run to the single named subdirectory.
	Only string `yaml:"only"`

	// Workers is the size of the worker pool. Archiving is CPU bound and
	// uploads are network bound, so this is an explicit tunable rather
	// than something derived from GOMAXPROCS.
	Workers int `yaml:"workers"`

	// SizeCeilingBytes skips archiving for inactive directories at or
	// above this size. A capacity guard, not a correctness rule.
	SizeCeilingBytes int64 `yaml:"sizeCeilingBytes"`
}

// ObjectStoreConfig configures the S3-compatible object store.
type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint" env:"COLDHOME_S3_ENDPOINT"`
	Bucket       string `yaml:"bucket" env:"COLDHOME_S3_BUCKET"`
	Region       string `yaml:"region" env:"COLDHOME_S3_REGION"`
	AccessKey    string `yaml:"accessKey" env:"COLDHOME_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"COLDHOME_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"COLDHOME_S3_PATH_STYLE"`
}

// DaemonConfig configures periodic operation.
type DaemonConfig struct {
	// Schedule is a standard five-field cron expression. Empty disables
	// scheduled runs (the daemon then only serves metrics).
	Schedule string `yaml:"schedule" env:"COLDHOME_SCHEDULE"`
}

// ObservabilityConfig configures logging and the metrics endpoint.
type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"COLDHOME_METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"COLDHOME_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"COLDHOME_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Archiver: ArchiverConfig{
			CutoffDays:       90,
			NoticeFileName:   "WHERE-ARE-MY-FILES.txt",
			Workers:          8,
			SizeCeilingBytes: 100 * 1000 * 1000 * 1000, // 100 GB
		},
		ObjectStore: ObjectStoreConfig{
			Region: "us-east-1",
		},
		Observability: ObservabilityConfig{
			MetricsAddr: ":9090",
			LogLevel:    "info",
			LogFormat:   "json",
		},
	}
}

// Load returns the default configuration with environment overrides applied.
func Load() (*Config, error) {
	cfg := Default()
	cfg.applyEnv()
	return cfg, nil
}

// LoadFromPath loads configuration from a YAML file, then applies
// environment overrides on top.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setBool := func(dst *bool, key string) {
		if v, ok := os.LookupEnv(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setString(&c.ObjectStore.Endpoint, "COLDHOME_S3_ENDPOINT")
	setString(&c.ObjectStore.Bucket, "COLDHOME_S3_BUCKET")
	setString(&c.ObjectStore.Region, "COLDHOME_S3_REGION")
	setString(&c.ObjectStore.AccessKey, "COLDHOME_S3_ACCESS_KEY")
	setString(&c.ObjectStore.SecretKey, "COLDHOME_S3_SECRET_KEY")
	setBool(&c.ObjectStore.UsePathStyle, "COLDHOME_S3_PATH_STYLE")
	setString(&c.Daemon.Schedule, "COLDHOME_SCHEDULE")
	setString(&c.Observability.MetricsAddr, "COLDHOME_METRICS_ADDR")
	setString(&c.Observability.LogLevel, "COLDHOME_LOG_LEVEL")
	setString(&c.Observability.LogFormat, "COLDHOME_LOG_FORMAT")
}

// Cutoff returns the staleness cutoff instant relative to now.
func (c *ArchiverConfig) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(c.CutoffDays) * 24 * time.Hour)
}

// Validate checks the configuration for a runnable archiver pass.
func (c *Config) Validate() error {
	if c.Archiver.RootDir == "" {
		return errors.New("config: archiver.rootDir is required")
	}
	if c.Archiver.CutoffDays <= 0 {
		return fmt.Errorf("config: archiver.cutoffDays must be positive, got %d", c.Archiver.CutoffDays)
	}
	if c.Archiver.ObjectPrefix == "" {
		return errors.New("config: archiver.objectPrefix is required")
	}
	if c.Archiver.NoticeFileName == "" {
		return errors.New("config: archiver.noticeFileName is required")
	}
	if c.Archiver.Workers <= 0 {
		return fmt.Errorf("config: archiver.workers must be positive, got %d", c.Archiver.Workers)
	}
	if c.Archiver.SizeCeilingBytes < 0 {
		return fmt.Errorf("config: archiver.sizeCeilingBytes must not be negative, got %d", c.Archiver.SizeCeilingBytes)
	}
	if c.ObjectStore.Bucket == "" {
		return errors.New("config: objectStore.bucket is required")
	}
	return nil
}
