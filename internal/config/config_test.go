package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.HTTPPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.HTTPPort)
	}
	if cfg.LogoVariants != 4 {
		t.Errorf("expected 4 logo variants, got %d", cfg.LogoVariants)
	}
	if cfg.MaxConcurrentRuns != 4 {
		t.Errorf("expected 4 concurrent runs, got %d", cfg.MaxConcurrentRuns)
	}
	if cfg.LevelParallelism != 1 {
		t.Errorf("expected sequential level execution by default, got %d", cfg.LevelParallelism)
	}
	if cfg.PackageLinkTTL != 7*24*time.Hour {
		t.Errorf("expected 7 day link TTL, got %v", cfg.PackageLinkTTL)
	}
	if !cfg.DeployWait {
		t.Error("expected DeployWait default true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("LOGO_VARIANTS", "2")
	t.Setenv("DEPLOY_WAIT", "false")
	t.Setenv("PROGRESS_POLL_MS", "100")
	t.Setenv("STORE_BUCKET", "bundles")

	cfg := Load()
	if cfg.HTTPPort != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.HTTPPort)
	}
	if cfg.LogoVariants != 2 {
		t.Errorf("expected 2 logo variants, got %d", cfg.LogoVariants)
	}
	if cfg.DeployWait {
		t.Error("expected DeployWait false")
	}
	if cfg.ProgressPollInterval != 100*time.Millisecond {
		t.Errorf("expected 100ms poll interval, got %v", cfg.ProgressPollInterval)
	}
	if cfg.StoreBucket != "bundles" {
		t.Errorf("expected bucket bundles, got %s", cfg.StoreBucket)
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-number")
	t.Setenv("DEPLOY_WAIT", "maybe")

	cfg := Load()
	if cfg.HTTPPort != 8080 {
		t.Errorf("invalid port should fall back to default, got %d", cfg.HTTPPort)
	}
	if !cfg.DeployWait {
		t.Error("invalid bool should fall back to default true")
	}
}
