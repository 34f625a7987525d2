package main

import (
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestReadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)

	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.listenAddr != ":8080" || cfg.keepAlive != 30*time.Second || cfg.typingTimeout != 7*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.rateStatsBackend != "" {
		t.Fatalf("expected stats disabled by default, got %q", cfg.rateStatsBackend)
	}
}

func TestReadConfig_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, err := readConfig(); err == nil {
		t.Fatalf("expected error for short JWT_SECRET")
	}
}

func TestReadConfig_RedisStatsNeedAddr(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("RATE_STATS_BACKEND", "redis")
	if _, err := readConfig(); err == nil {
		t.Fatalf("expected error without RATE_STATS_REDIS_ADDR")
	}

	t.Setenv("RATE_STATS_REDIS_ADDR", "localhost:6379")
	if _, err := readConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReadConfig_InvalidValuesFallBackToDefault(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("STREAMS_MAX", "muitos")
	t.Setenv("TYPING_TIMEOUT", "2s")

	cfg, err := readConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.streamsMax != 1000 {
		t.Fatalf("expected default STREAMS_MAX, got %d", cfg.streamsMax)
	}
	if cfg.typingTimeout != 2*time.Second {
		t.Fatalf("expected TYPING_TIMEOUT override, got %s", cfg.typingTimeout)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", "console"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := newLogger("loud", "json"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
	if _, err := newLogger("info", "xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
