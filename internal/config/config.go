package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "Europe/Stockholm"
	defaultLogLevel      = "info"
	defaultSourceTimeout = 10
	defaultTargetTimeout = 15
	defaultRateLimit     = 5
	defaultRateBurst     = 1
	defaultSyncCron      = "0 */6 * * *"
)

// Environment variables that override file values. Overrides are never
// written back by Save.
const (
	EnvCanvasBaseURL = "CANVAS_BASE_URL"
	EnvCanvasToken   = "CANVAS_TOKEN"
	EnvListen        = "PULSE_LISTEN"
	EnvTimezone      = "PULSE_TIMEZONE"
	EnvLogLevel      = "PULSE_LOG_LEVEL"
)

// SourceConfig tunes requests against TimeEdit.
type SourceConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Timeout returns the request timeout as a duration.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// TargetConfig holds the Canvas connection.
type TargetConfig struct {
	BaseURL        string  `yaml:"base_url" json:"base_url"`
	Token          string  `yaml:"token" json:"-"`
	TimeoutSeconds int     `yaml:"timeout_seconds" json:"timeout_seconds"`
	RateLimit      float64 `yaml:"rate_limit" json:"rate_limit"`
	RateBurst      int     `yaml:"rate_burst" json:"rate_burst"`
}

func (t TargetConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// SyncJob describes one periodic TimeEdit to Canvas sync.
type SyncJob struct {
	ID  string `yaml:"id" json:"id"`
	URL string `yaml:"url" json:"url"`
	// ContextID is course_<id> or user_<id>. Empty publishes to the token
	// owner's personal calendar.
	ContextID string `yaml:"context_id,omitempty" json:"context_id,omitempty"`
	// Cron is a standard 5-field cron expression.
	Cron string `yaml:"cron" json:"cron"`
	// Timezone overrides Config.Timezone for this job.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone TimeEdit wall-clock times are read in.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Source SourceConfig `yaml:"source" json:"source"`
	Target TargetConfig `yaml:"target" json:"target"`

	Sync []SyncJob `yaml:"sync" json:"sync"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   defaultListen,
		Timezone: defaultTimezone,
		LogLevel: defaultLogLevel,
		Source:   SourceConfig{TimeoutSeconds: defaultSourceTimeout},
		Target: TargetConfig{
			TimeoutSeconds: defaultTargetTimeout,
			RateLimit:      defaultRateLimit,
			RateBurst:      defaultRateBurst,
		},
		Sync: []SyncJob{},
	}
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.Source.TimeoutSeconds <= 0 {
		c.Source.TimeoutSeconds = defaultSourceTimeout
	}
	c.Target.BaseURL = strings.TrimRight(strings.TrimSpace(c.Target.BaseURL), "/")
	if c.Target.TimeoutSeconds <= 0 {
		c.Target.TimeoutSeconds = defaultTargetTimeout
	}
	if c.Target.RateLimit <= 0 {
		c.Target.RateLimit = defaultRateLimit
	}
	if c.Target.RateBurst <= 0 {
		c.Target.RateBurst = defaultRateBurst
	}
	if c.Sync == nil {
		c.Sync = []SyncJob{}
	}
	for i := range c.Sync {
		job := &c.Sync[i]
		if job.ID == "" {
			job.ID = fmt.Sprintf("sync-%d", i+1)
		}
		if job.Cron == "" {
			job.Cron = defaultSyncCron
		}
	}
}

// Validate reports configuration errors that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	seen := make(map[string]bool, len(c.Sync))
	for _, job := range c.Sync {
		if strings.TrimSpace(job.URL) == "" {
			return fmt.Errorf("sync job %q: url is empty", job.ID)
		}
		if seen[job.ID] {
			return fmt.Errorf("sync job %q: duplicate id", job.ID)
		}
		seen[job.ID] = true
		if job.Timezone != "" {
			if _, err := time.LoadLocation(job.Timezone); err != nil {
				return fmt.Errorf("sync job %q: timezone %q: %w", job.ID, job.Timezone, err)
			}
		}
	}
	return nil
}

// Location returns the configured zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ApplyEnv overlays values from the process environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvCanvasBaseURL); ok && v != "" {
		c.Target.BaseURL = strings.TrimRight(strings.TrimSpace(v), "/")
	}
	if v, ok := lookup(EnvCanvasToken); ok && v != "" {
		c.Target.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvTimezone); ok && v != "" {
		c.Timezone = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
		c.Normalize()
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pulsesync-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
