package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("EXPORT_JOB_TTL", "")
	t.Setenv("SSE_HEARTBEAT", "")
	cfg := Load()
	if cfg.ExportJobTTL != 30*time.Minute {
		t.Fatalf("ExportJobTTL = %s, want 30m", cfg.ExportJobTTL)
	}
	if cfg.SSEHeartbeat != 15*time.Second {
		t.Fatalf("SSEHeartbeat = %s, want 15s", cfg.SSEHeartbeat)
	}
	if cfg.AdvancedCooldown != 5*time.Minute {
		t.Fatalf("AdvancedCooldown = %s, want 5m", cfg.AdvancedCooldown)
	}
}

func TestLoadLogSettings(t *testing.T) {
	t.Setenv("LOG_LEVEL", "WARN")
	t.Setenv("LOG_FILE", "")
	t.Setenv("LOG_FILE_COMPRESS", "false")
	cfg := Load()
	if cfg.LogLevel != "warn" || cfg.LogFile != "" || cfg.LogFileCompress {
		t.Fatalf("log settings = %q %q %v", cfg.LogLevel, cfg.LogFile, cfg.LogFileCompress)
	}
	if cfg.LogFileMaxSizeMB != 50 || cfg.LogFileMaxBackups != 3 || cfg.LogFileMaxAgeDays != 7 {
		t.Fatalf("rotation defaults = %d/%d/%d", cfg.LogFileMaxSizeMB, cfg.LogFileMaxBackups, cfg.LogFileMaxAgeDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("EXPORT_JOB_TTL", "90s")
	t.Setenv("RENDER_MAX_WORKERS", "3")
	t.Setenv("EXPORT_S3_PATH_STYLE", "true")
	t.Setenv("DEFAULT_EXPORT_LANGUAGES", "en, ja ,")
	t.Setenv("RATE_LIMIT_REFILL_PER_SEC", "not-a-number")

	cfg := Load()
	if cfg.ExportJobTTL != 90*time.Second {
		t.Fatalf("ExportJobTTL = %s, want 90s", cfg.ExportJobTTL)
	}
	if cfg.RenderMaxWorkers != 3 || !cfg.ExportPathStyle {
		t.Fatalf("workers/pathStyle = %d/%v", cfg.RenderMaxWorkers, cfg.ExportPathStyle)
	}
	if len(cfg.DefaultLanguages) != 2 || cfg.DefaultLanguages[1] != "ja" {
		t.Fatalf("DefaultLanguages = %v", cfg.DefaultLanguages)
	}
	if cfg.RateLimitRefill != 0.2 {
		t.Fatalf("invalid float should fall back, got %v", cfg.RateLimitRefill)
	}
}
