package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/storefront")

	cfg, err := LoadPostgres()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "postgres://localhost:5432/storefront" {
		t.Fatalf("unexpected url: %s", cfg.URL)
	}
}

func TestLoadPostgresMissing(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadPostgres(); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected missing DATABASE_URL error, got %v", err)
	}
}

func TestLoadRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_POOL_SIZE", "20")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "4s")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis url: %s", cfg.URL)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 20 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.ReadTimeout != nil {
		t.Fatalf("unset read timeout must stay nil, got %v", cfg.ReadTimeout)
	}
	if cfg.HealthcheckTimeout != 4*time.Second {
		t.Fatalf("unexpected healthcheck timeout: %v", cfg.HealthcheckTimeout)
	}
	if !cfg.EnableOTel {
		t.Fatalf("expected otel enabled")
	}
}

func TestLoadRedisRejectsBadDuration(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_DIAL_TIMEOUT", "soon")

	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadProvider(t *testing.T) {
	t.Setenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	t.Setenv("PAYPAL_CLIENT_ID", "id")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
	t.Setenv("PAYPAL_CURRENCY", "EUR")
	t.Setenv("PAYPAL_TIMEOUT", "20s")
	t.Setenv("PAYPAL_TOKEN_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := LoadProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BaseURL != "https://api-m.sandbox.paypal.com" || cfg.ClientID != "id" || cfg.ClientSecret != "secret" {
		t.Fatalf("unexpected provider cfg: %+v", cfg)
	}
	if cfg.Currency != "EUR" {
		t.Fatalf("unexpected currency: %s", cfg.Currency)
	}
	if cfg.Timeout != 20*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout)
	}
	if cfg.TokenRetryMax != 5 {
		t.Fatalf("unexpected retry attempts: %d", cfg.TokenRetryMax)
	}
}

func TestLoadProviderDefaults(t *testing.T) {
	t.Setenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	t.Setenv("PAYPAL_CLIENT_ID", "id")
	t.Setenv("PAYPAL_CLIENT_SECRET", "secret")
	t.Setenv("PAYPAL_CURRENCY", "")
	t.Setenv("PAYPAL_TIMEOUT", "")

	cfg, err := LoadProvider()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Currency != "USD" {
		t.Fatalf("expected USD default, got %s", cfg.Currency)
	}
	if cfg.Timeout != 15*time.Second {
		t.Fatalf("expected 15s default, got %v", cfg.Timeout)
	}
	if cfg.TokenRetryMax != 3 || cfg.TokenRetryBase != 100*time.Millisecond {
		t.Fatalf("unexpected retry defaults: %+v", cfg)
	}
}

func TestLoadProviderMissingSecret(t *testing.T) {
	t.Setenv("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	t.Setenv("PAYPAL_CLIENT_ID", "id")
	t.Setenv("PAYPAL_CLIENT_SECRET", "")

	if _, err := LoadProvider(); err == nil || !strings.Contains(err.Error(), "PAYPAL_CLIENT_SECRET") {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestLoadCheckoutDefaults(t *testing.T) {
	t.Setenv("CHECKOUT_PENDING_TTL", "")
	t.Setenv("CHECKOUT_BREAKER_MAX_FAILURES", "")
	t.Setenv("CHECKOUT_BREAKER_RESET_TIMEOUT", "")

	cfg, err := LoadCheckout()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PendingTTL != 900*time.Second {
		t.Fatalf("unexpected pending ttl: %v", cfg.PendingTTL)
	}
	if cfg.BreakerMaxFailures != 1 {
		t.Fatalf("unexpected breaker threshold: %d", cfg.BreakerMaxFailures)
	}
	if cfg.BreakerResetTimeout != 10*time.Second {
		t.Fatalf("unexpected breaker reset: %v", cfg.BreakerResetTimeout)
	}
}

func TestLoadCheckoutOverrides(t *testing.T) {
	t.Setenv("CHECKOUT_PENDING_TTL", "5m")
	t.Setenv("CHECKOUT_BREAKER_MAX_FAILURES", "3")
	t.Setenv("CHECKOUT_BREAKER_RESET_TIMEOUT", "30s")

	cfg, err := LoadCheckout()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.PendingTTL != 5*time.Minute || cfg.BreakerMaxFailures != 3 || cfg.BreakerResetTimeout != 30*time.Second {
		t.Fatalf("unexpected checkout cfg: %+v", cfg)
	}
}

func TestLoadHTTP(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("HTTP_RATE_LIMIT_INTERVAL", "10ms")
	t.Setenv("HTTP_RATE_LIMIT_BURST", "50")
	t.Setenv("HTTP_CORS_ORIGINS", "https://shop.example.com, https://admin.example.com")

	cfg, err := LoadHTTP()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Fatalf("unexpected addr: %s", cfg.Addr)
	}
	if cfg.RateLimitInterval != 10*time.Millisecond || cfg.RateLimitBurst != 50 {
		t.Fatalf("unexpected rate limit cfg: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://admin.example.com" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadHTTPDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("HTTP_RATE_LIMIT_INTERVAL", "")
	t.Setenv("HTTP_RATE_LIMIT_BURST", "")
	t.Setenv("HTTP_CORS_ORIGINS", "")

	cfg, err := LoadHTTP()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unexpected default addr: %s", cfg.Addr)
	}
	if cfg.RateLimitInterval != 0 || cfg.RateLimitBurst != 0 {
		t.Fatalf("rate limiting must default to disabled: %+v", cfg)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}
