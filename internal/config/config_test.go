package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("CALC_CACHE_TTL_SECONDS", "")
	t.Setenv("SESSION_DEBOUNCE_MILLIS", "")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "")

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.Port)
	}
	if cfg.CacheTTLSeconds != 60 {
		t.Fatalf("expected default cache TTL 60, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.DebounceMillis != 300 {
		t.Fatalf("expected default debounce 300, got %d", cfg.DebounceMillis)
	}
	if cfg.AccessTokenTTLMinutes != 480 {
		t.Fatalf("expected default token TTL 480, got %d", cfg.AccessTokenTTLMinutes)
	}
	if cfg.Address() != ":8080" {
		t.Fatalf("unexpected address %q", cfg.Address())
	}
}

func TestLoadRejectsBogusNumericEnv(t *testing.T) {
	t.Setenv("CALC_CACHE_TTL_SECONDS", "not-a-number")
	t.Setenv("SESSION_DEBOUNCE_MILLIS", "-50")

	cfg := Load()
	if cfg.CacheTTLSeconds != 60 {
		t.Fatalf("expected fallback cache TTL 60, got %d", cfg.CacheTTLSeconds)
	}
	if cfg.DebounceMillis != 300 {
		t.Fatalf("expected fallback debounce 300, got %d", cfg.DebounceMillis)
	}
}
