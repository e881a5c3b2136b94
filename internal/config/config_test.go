package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Archiver.RootDir = "/export/home"
	cfg.Archiver.ObjectPrefix = "archives/2026-spring"
	cfg.ObjectStore.Bucket = "homedir-archives"
	return cfg
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, 90, cfg.Archiver.CutoffDays)
	require.Equal(t, "WHERE-ARE-MY-FILES.txt", cfg.Archiver.NoticeFileName)
	require.Equal(t, 8, cfg.Archiver.Workers)
	require.Equal(t, int64(100*1000*1000*1000), cfg.Archiver.SizeCeilingBytes)
	require.Equal(t, "us-east-1", cfg.ObjectStore.Region)
	require.Equal(t, "info", cfg.Observability.LogLevel)
}

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
archiver:
  rootDir: /export/home
  cutoffDays: 180
  objectPrefix: archives/test
  workers: 4
objectStore:
  bucket: my-bucket
  endpoint: http://localhost:9000
daemon:
  schedule: "0 3 * * *"
`), 0o644))

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "/export/home", cfg.Archiver.RootDir)
	require.Equal(t, 180, cfg.Archiver.CutoffDays)
	require.Equal(t, 4, cfg.Archiver.Workers)
	require.Equal(t, "my-bucket", cfg.ObjectStore.Bucket)
	require.Equal(t, "0 3 * * *", cfg.Daemon.Schedule)
	// Unset fields keep defaults.
	require.Equal(t, "WHERE-ARE-MY-FILES.txt", cfg.Archiver.NoticeFileName)
}

func TestLoadFromPathMissingFile(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COLDHOME_S3_BUCKET", "env-bucket")
	t.Setenv("COLDHOME_S3_PATH_STYLE", "true")
	t.Setenv("COLDHOME_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "env-bucket", cfg.ObjectStore.Bucket)
	require.True(t, cfg.ObjectStore.UsePathStyle)
	require.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestCutoff(t *testing.T) {
	cfg := ArchiverConfig{CutoffDays: 90}
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, now.Add(-90*24*time.Hour), cfg.Cutoff(now))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing root", func(c *Config) { c.Archiver.RootDir = "" }},
		{"zero cutoff", func(c *Config) { c.Archiver.CutoffDays = 0 }},
		{"missing prefix", func(c *Config) { c.Archiver.ObjectPrefix = "" }},
		{"missing notice name", func(c *Config) { c.Archiver.NoticeFileName = "" }},
		{"zero workers", func(c *Config) { c.Archiver.Workers = 0 }},
		{"negative ceiling", func(c *Config) { c.Archiver.SizeCeilingBytes = -1 }},
		{"missing bucket", func(c *Config) { c.ObjectStore.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
