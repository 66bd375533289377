package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 6, cfg.Fetch.Concurrency)
	assert.Equal(t, "positional", cfg.Archive.Numbering)
	assert.Equal(t, "Downloaded from.txt", cfg.Archive.ProvenanceName)
	assert.Equal(t, 10*time.Minute, cfg.Download.WaitTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COMICGRABBER_CONCURRENCY", "9")
	t.Setenv("COMICGRABBER_FETCH_TIMEOUT", "5s")
	t.Setenv("COMICGRABBER_OUTPUT_DIR", "/tmp/comics")
	t.Setenv("COMICGRABBER_CONFLICT_POLICY", "overwrite")
	t.Setenv("COMICGRABBER_NOTIFICATIONS", "false")
	t.Setenv("COMICGRABBER_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 9, cfg.Fetch.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "/tmp/comics", cfg.Download.Directory)
	assert.Equal(t, "overwrite", cfg.Download.ConflictPolicy)
	assert.False(t, cfg.Notifications.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromEnvReportsBadValues(t *testing.T) {
	t.Setenv("COMICGRABBER_CONCURRENCY", "many")
	t.Setenv("COMICGRABBER_WAIT_TIMEOUT", "forever")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMICGRABBER_CONCURRENCY")
	assert.Contains(t, err.Error(), "COMICGRABBER_WAIT_TIMEOUT")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
fetch:
  concurrency: 4
  timeout: 12s
archive:
  numbering: compact
download:
  directory: /srv/comics
  conflict_policy: fail
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 4, cfg.Fetch.Concurrency)
	assert.Equal(t, 12*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "compact", cfg.Archive.Numbering)
	assert.Equal(t, "fail", cfg.Download.ConflictPolicy)
	// untouched keys keep their defaults
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"zero concurrency", func(c *Config) { c.Fetch.Concurrency = 0 }, "concurrency must be positive"},
		{"bad numbering", func(c *Config) { c.Archive.Numbering = "random" }, "invalid archive numbering"},
		{"bad conflict policy", func(c *Config) { c.Download.ConflictPolicy = "prompt" }, "invalid conflict policy"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "invalid log level"},
		{"negative wait", func(c *Config) { c.Download.WaitTimeout = -time.Second }, "wait timeout cannot be negative"},
		{"compression out of range", func(c *Config) { c.Archive.CompressionLevel = 12 }, "compression level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MergeCommandLineFlags(map[string]interface{}{
		"output":        "/out",
		"conflict":      "overwrite",
		"concurrent":    2,
		"notifications": false,
	})

	assert.Equal(t, "/out", cfg.Download.Directory)
	assert.Equal(t, "overwrite", cfg.Download.ConflictPolicy)
	assert.Equal(t, 2, cfg.Fetch.Concurrency)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  concurrency: 4\n"), 0644))
	t.Setenv("COMICGRABBER_CONCURRENCY", "5")

	cfg, err := Load(path, map[string]interface{}{"concurrent": 7})
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Fetch.Concurrency)

	cfg, err = Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Fetch.Concurrency)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Download.Directory = "/data"

	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "/data", loaded.Download.Directory)
}
