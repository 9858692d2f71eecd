package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "PORT", "DATABASE_URL", "SQLITE_PATH", "STORAGE_PATH",
		"WORKER_COUNT", "POLL_INTERVAL_SECONDS", "REMOVAL_BASE_URL",
		"GEMINI_API_KEY", "GEMINI_MODEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AppEnv != "development" {
		t.Fatalf("app env = %q, want development", cfg.AppEnv)
	}
	if cfg.Port != "8080" {
		t.Fatalf("port = %q, want 8080", cfg.Port)
	}
	if cfg.SQLitePath != "./spriteforge.db" {
		t.Fatalf("sqlite path = %q", cfg.SQLitePath)
	}
	if cfg.WorkerCount != 2 {
		t.Fatalf("worker count = %d, want 2", cfg.WorkerCount)
	}
	if cfg.DBMaxConns != 10 {
		t.Fatalf("db max conns = %d, want 10", cfg.DBMaxConns)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %s, want 2s", cfg.PollInterval)
	}
	if cfg.GeminiModel != "gemini-2.5-flash-image" {
		t.Fatalf("gemini model = %q", cfg.GeminiModel)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://localhost/sprites")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("DB_MAX_CONNS", "25")
	t.Setenv("POLL_INTERVAL_SECONDS", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AppEnv != "production" || cfg.Port != "9000" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DatabaseURL != "postgres://localhost/sprites" {
		t.Fatalf("database url = %q", cfg.DatabaseURL)
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("worker count = %d", cfg.WorkerCount)
	}
	if cfg.DBMaxConns != 25 {
		t.Fatalf("db max conns = %d, want 25", cfg.DBMaxConns)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Fatalf("poll interval = %s", cfg.PollInterval)
	}
}

func TestLoadConfigClampsCounts(t *testing.T) {
	t.Setenv("WORKER_COUNT", "0")
	t.Setenv("DB_MAX_CONNS", "-3")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.WorkerCount != 1 {
		t.Fatalf("worker count = %d, want clamped to 1", cfg.WorkerCount)
	}
	if cfg.DBMaxConns != 1 {
		t.Fatalf("db max conns = %d, want clamped to 1", cfg.DBMaxConns)
	}
}
