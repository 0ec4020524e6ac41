package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != defaultListen || cfg.Source.TimeoutSeconds != 10 || cfg.Target.TimeoutSeconds != 15 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm = %o, want 600", perm)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Timezone != cfg.Timezone || again.Target.RateBurst != 1 {
		t.Fatalf("reloaded config differs: %+v", again)
	}
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
timezone: Europe/Stockholm
log_level: LOUD
target:
  base_url: https://canvas.example.edu/
  token: abc
sync:
  - url: https://cloud.timeedit.net/uni/web/s/ri1.html
  - id: course
    url: https://cloud.timeedit.net/uni/web/s/ri2
    context_id: course_42
    cron: "*/30 * * * *"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("unknown log level should fall back to info, got %q", cfg.LogLevel)
	}
	if cfg.Target.BaseURL != "https://canvas.example.edu" {
		t.Errorf("base url = %q", cfg.Target.BaseURL)
	}
	if cfg.Target.Timeout() != 15*time.Second || cfg.Source.Timeout() != 10*time.Second {
		t.Errorf("timeouts = %s / %s", cfg.Target.Timeout(), cfg.Source.Timeout())
	}
	if len(cfg.Sync) != 2 {
		t.Fatalf("sync jobs = %d", len(cfg.Sync))
	}
	if cfg.Sync[0].ID != "sync-1" || cfg.Sync[0].Cron != defaultSyncCron {
		t.Errorf("first job not defaulted: %+v", cfg.Sync[0])
	}
	if cfg.Sync[1].ContextID != "course_42" || cfg.Sync[1].Cron != "*/30 * * * *" {
		t.Errorf("second job = %+v", cfg.Sync[1])
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		EnvCanvasBaseURL: " https://canvas.example.edu/ ",
		EnvCanvasToken:   "tok",
		EnvListen:        ":9090",
		EnvLogLevel:      "DEBUG",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ApplyEnv(lookup)

	if cfg.Target.BaseURL != "https://canvas.example.edu" || cfg.Target.Token != "tok" {
		t.Errorf("target = %+v", cfg.Target)
	}
	if cfg.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
	if cfg.Timezone != defaultTimezone {
		t.Errorf("unset variables must not override, timezone = %q", cfg.Timezone)
	}
}

func TestSaveRoundTripsToken(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Target.Token = "persisted"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Target.Token != "persisted" {
		t.Fatalf("token not round-tripped through YAML: %q", loaded.Target.Token)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, wantErr: "timezone"},
		{name: "job without url", mutate: func(c *Config) { c.Sync = []SyncJob{{ID: "a"}} }, wantErr: "url is empty"},
		{name: "duplicate id", mutate: func(c *Config) {
			c.Sync = []SyncJob{{ID: "a", URL: "u"}, {ID: "a", URL: "v"}}
		}, wantErr: "duplicate"},
		{name: "bad job timezone", mutate: func(c *Config) {
			c.Sync = []SyncJob{{ID: "a", URL: "u", Timezone: "Nowhere/Land"}}
		}, wantErr: "timezone"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			cfg.Timezone = "UTC"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}
