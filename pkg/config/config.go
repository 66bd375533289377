package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "COMICGRABBER_"

// Config holds all configuration options for comicgrabber
type Config struct {
	Fetch         FetchConfig        `yaml:"fetch" json:"fetch"`
	Archive       ArchiveConfig      `yaml:"archive" json:"archive"`
	Download      DownloadConfig     `yaml:"download" json:"download"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// FetchConfig controls how images and pages are retrieved
type FetchConfig struct {
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	Timeout           time.Duration `yaml:"timeout" json:"timeout"`
	MaxAttempts       int           `yaml:"max_attempts" json:"max_attempts"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
	UserAgent         string        `yaml:"user_agent" json:"user_agent"`
	ForwardReferer    bool          `yaml:"forward_referer" json:"forward_referer"`
}

// ArchiveConfig controls archive entry naming and compression
type ArchiveConfig struct {
	// Numbering is "positional" (ordinal = page position, failures leave gaps)
	// or "compact" (ordinal counts successful images only).
	Numbering        string `yaml:"numbering" json:"numbering"`
	ProvenanceName   string `yaml:"provenance_name" json:"provenance_name"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level"`
}

// DownloadConfig controls the local download host
type DownloadConfig struct {
	Directory      string        `yaml:"directory" json:"directory"`
	ConflictPolicy string        `yaml:"conflict_policy" json:"conflict_policy"`
	WaitTimeout    time.Duration `yaml:"wait_timeout" json:"wait_timeout"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Fetch: FetchConfig{
			Concurrency:       6,
			Timeout:           30 * time.Second,
			MaxAttempts:       3,
			RequestsPerMinute: 600,
			UserAgent:         "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			ForwardReferer:    true,
		},
		Archive: ArchiveConfig{
			Numbering:        "positional",
			ProvenanceName:   "Downloaded from.txt",
			CompressionLevel: -1,
		},
		Download: DownloadConfig{
			Directory:      "./downloads",
			ConflictPolicy: "overwrite",
			WaitTimeout:    10 * time.Minute,
		},
		Notifications: NotificationConfig{
			Enabled: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv overrides values from COMICGRABBER_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv(envPrefix + "CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err))
		} else {
			c.Fetch.Concurrency = n
		}
	}
	if v := os.Getenv(envPrefix + "FETCH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sFETCH_TIMEOUT: %w", envPrefix, err))
		} else {
			c.Fetch.Timeout = d
		}
	}
	if v := os.Getenv(envPrefix + "MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sMAX_ATTEMPTS: %w", envPrefix, err))
		} else {
			c.Fetch.MaxAttempts = n
		}
	}
	if v := os.Getenv(envPrefix + "USER_AGENT"); v != "" {
		c.Fetch.UserAgent = v
	}
	if v := os.Getenv(envPrefix + "NUMBERING"); v != "" {
		c.Archive.Numbering = v
	}
	if v := os.Getenv(envPrefix + "OUTPUT_DIR"); v != "" {
		c.Download.Directory = v
	}
	if v := os.Getenv(envPrefix + "CONFLICT_POLICY"); v != "" {
		c.Download.ConflictPolicy = v
	}
	if v := os.Getenv(envPrefix + "WAIT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sWAIT_TIMEOUT: %w", envPrefix, err))
		} else {
			c.Download.WaitTimeout = d
		}
	}
	if v := os.Getenv(envPrefix + "NOTIFICATIONS"); v != "" {
		c.Notifications.Enabled = strings.EqualFold(v, "true")
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envPrefix + "LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file. An empty path searches
// the default locations; finding nothing there is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

func findConfigFile() string {
	home := os.Getenv("HOME")
	locations := []string{
		".comicgrabber.yaml",
		".comicgrabber.yml",
		filepath.Join(home, ".config", "comicgrabber", "config.yaml"),
		filepath.Join(home, ".comicgrabber.yaml"),
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.Concurrency <= 0 {
		errs = append(errs, errors.New("fetch concurrency must be positive"))
	}
	if c.Fetch.Concurrency > 64 {
		errs = append(errs, errors.New("fetch concurrency should not exceed 64"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch timeout must be positive"))
	}
	if c.Fetch.MaxAttempts <= 0 {
		errs = append(errs, errors.New("fetch max attempts must be positive"))
	}
	if c.Fetch.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	switch c.Archive.Numbering {
	case "positional", "compact":
	default:
		errs = append(errs, fmt.Errorf("invalid archive numbering %q", c.Archive.Numbering))
	}
	if c.Archive.ProvenanceName == "" {
		errs = append(errs, errors.New("archive provenance name is required"))
	}
	if c.Archive.CompressionLevel < -1 || c.Archive.CompressionLevel > 9 {
		errs = append(errs, errors.New("archive compression level must be between -1 and 9"))
	}

	if c.Download.Directory == "" {
		errs = append(errs, errors.New("download directory is required"))
	}
	switch c.Download.ConflictPolicy {
	case "overwrite", "uniquify", "fail":
	default:
		errs = append(errs, fmt.Errorf("invalid conflict policy %q", c.Download.ConflictPolicy))
	}
	if c.Download.WaitTimeout < 0 {
		errs = append(errs, errors.New("download wait timeout cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}

	return errors.Join(errs...)
}

// Save writes the configuration as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Download.Directory = v
	}
	if v, ok := flags["conflict"].(string); ok && v != "" {
		c.Download.ConflictPolicy = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Fetch.Concurrency = v
	}
	if v, ok := flags["numbering"].(string); ok && v != "" {
		c.Archive.Numbering = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["notifications"].(bool); ok {
		c.Notifications.Enabled = v
	}
}

// Load loads configuration from all sources with proper precedence:
// flags > environment > .env files > config file > defaults.
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".comicgrabber.env"))

	cfg := DefaultConfig()

	if err := cfg.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg.MergeCommandLineFlags(flags)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
