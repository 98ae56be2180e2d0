package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: "9090"
postgres:
  url: postgres://file
redis:
  addr: localhost:6379
  ttl: 2m
quiz:
  grace: 5s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from file, got %q", cfg.Server.Port)
	}
	if cfg.Postgres.URL != "postgres://env" {
		t.Fatalf("expected env override, got %q", cfg.Postgres.URL)
	}
	if cfg.Redis.DB != 3 {
		t.Fatalf("expected redis db 3, got %d", cfg.Redis.DB)
	}
	if cfg.Storage.Driver != "postgres" {
		t.Fatalf("expected postgres driver inferred from url, got %q", cfg.Storage.Driver)
	}
	if got := TTLDuration(cfg.Quiz.Grace, 3*time.Second); got != 5*time.Second {
		t.Fatalf("expected 5s grace, got %v", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("MONGO_URI", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.Driver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Auth.CookieName != "session-token" {
		t.Fatalf("expected default cookie name, got %q", cfg.Auth.CookieName)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := TTLDuration("nonsense", time.Minute); got != time.Minute {
		t.Fatalf("expected fallback on parse error, got %v", got)
	}
}

func TestValidateRequiresSecretForPersistentStorage(t *testing.T) {
	cfg := Config{}
	cfg.Storage.Driver = "postgres"
	if err := cfg.Validate(); err != ErrMissingJWTSecret {
		t.Fatalf("expected missing secret error, got %v", err)
	}
	cfg.Auth.JWTSecret = "s3cret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	cfg = Config{}
	cfg.Storage.Driver = "memory"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("memory driver may run without a secret, got %v", err)
	}
}
