package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "SQLite")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DBDriver != "sqlite" {
		t.Fatalf("expected normalized driver sqlite, got %q", cfg.DBDriver)
	}
	if cfg.Port != "8080" || cfg.AccessTTLMin != 60 || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected defaults: %#v", cfg)
	}
	if cfg.TokenPrice != "1.00" || cfg.MaxTokensPerPurchase != 100 {
		t.Fatalf("unexpected payment defaults: %#v", cfg)
	}
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DRIVER", "oracle")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestLoadRateLimitConfigNormalizes(t *testing.T) {
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg, err := LoadRateLimitConfig()
	if err != nil {
		t.Fatalf("LoadRateLimitConfig failed: %v", err)
	}
	if cfg.Capacity != 5 {
		t.Fatalf("expected burst to override capacity, got %d", cfg.Capacity)
	}
	if cfg.RefillTokens != 1 || cfg.RefillInterval != 2*time.Second {
		t.Fatalf("unexpected refill settings: %#v", cfg)
	}
	if cfg.TTL != 10*time.Second {
		t.Fatalf("expected TTL raised to 5 intervals, got %s", cfg.TTL)
	}
}

func TestLoadCacheConfigParsesMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head")

	cfg, err := LoadCacheConfig()
	if err != nil {
		t.Fatalf("LoadCacheConfig failed: %v", err)
	}
	if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || cfg.Methods["POST"] {
		t.Fatalf("unexpected methods: %#v", cfg.Methods)
	}
}

func TestRedisAddressPrefersHostAndPort(t *testing.T) {
	cfg := RedisConfig{Host: "cache", Port: "6380", Addr: "localhost:6379"}
	if got := cfg.Address(); got != "cache:6380" {
		t.Fatalf("expected cache:6380, got %s", got)
	}
	cfg.Port = ""
	if got := cfg.Address(); got != "localhost:6379" {
		t.Fatalf("expected fallback addr, got %s", got)
	}
}
