package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.API.BaseURL != "http://localhost:8000/api/v1" {
		t.Errorf("api base url = %q", cfg.API.BaseURL)
	}
	if cfg.Poll.Interval != 2*time.Second {
		t.Errorf("poll interval = %s, want 2s", cfg.Poll.Interval)
	}
	if cfg.Poll.MaxWait != 10*time.Minute {
		t.Errorf("poll max wait = %s, want 10m", cfg.Poll.MaxWait)
	}
	if cfg.History.PageSize != 8 {
		t.Errorf("page size = %d, want 8", cfg.History.PageSize)
	}
	if cfg.Session.Dir != filepath.Join(home, ".simguard") {
		t.Errorf("session dir = %q", cfg.Session.Dir)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SIMGUARD_ENVIRONMENT", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "production" {
		t.Errorf("environment = %q, want production", cfg.Environment)
	}
}
