package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "APP_ENV", "JWT_TTL_HOURS", "DATABASE_URL", "DB_HOST", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 3000 {
		t.Fatalf("got port %d, want 3000", cfg.Port)
	}

	if cfg.Env != "dev" {
		t.Fatalf("got env %q, want dev", cfg.Env)
	}

	if cfg.JWTTTLHours != 24 {
		t.Fatalf("got ttl %d, want 24", cfg.JWTTTLHours)
	}

	if cfg.DBURL == "" {
		t.Fatalf("expected a default db url")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/blog?sslmode=disable")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Port != 8081 || cfg.Env != "prod" || cfg.JWTSecret != "s3cret" {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	if cfg.DBURL != "postgres://u:p@db:5432/blog?sslmode=disable" {
		t.Fatalf("DATABASE_URL should win, got %q", cfg.DBURL)
	}

	want := []string{"https://a.example", "https://b.example"}

	if len(cfg.CORSAllowedOrigins) != len(want) {
		t.Fatalf("got origins %v, want %v", cfg.CORSAllowedOrigins, want)
	}

	for i := range want {
		if cfg.CORSAllowedOrigins[i] != want[i] {
			t.Fatalf("got origins %v, want %v", cfg.CORSAllowedOrigins, want)
		}
	}
}

func TestGetEnvIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("PORT", "not-a-number")

	if got := getEnvInt("PORT", 3000); got != 3000 {
		t.Fatalf("got %d, want fallback 3000", got)
	}
}
