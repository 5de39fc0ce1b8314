package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// PostgresConfig holds the durable store connection settings.
type PostgresConfig struct {
	URL string
}

// RedisConfig holds fast-cache connection and behavior settings.
type RedisConfig struct {
	URL                string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EnableOTel         bool
}

// ProviderConfig holds payment provider credentials and client tuning.
type ProviderConfig struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Currency          string
	Timeout           time.Duration
	TokenRetryMax     int
	TokenRetryBase    time.Duration
	TokenRetryMaxWait time.Duration
}

// CheckoutConfig holds saga timing and breaker settings.
type CheckoutConfig struct {
	PendingTTL          time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// HTTPConfig holds the public API server settings.
type HTTPConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
	AllowedOrigins    []string
}

// LoadPostgres reads the durable store config from env.
func LoadPostgres() (PostgresConfig, error) {
	url, err := requiredString("DATABASE_URL")
	if err != nil {
		return PostgresConfig{}, err
	}
	return PostgresConfig{URL: url}, nil
}

// LoadRedis reads fast-cache config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{}

	url, err := requiredString("REDIS_URL")
	if err != nil {
		return cfg, err
	}
	cfg.URL = url

	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}
	if cfg.HealthcheckTimeout, err = durationDefault("REDIS_HEALTHCHECK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadProvider reads payment provider config from env.
func LoadProvider() (ProviderConfig, error) {
	cfg := ProviderConfig{}
	var err error

	if cfg.BaseURL, err = requiredString("PAYPAL_BASE_URL"); err != nil {
		return cfg, err
	}
	if cfg.ClientID, err = requiredString("PAYPAL_CLIENT_ID"); err != nil {
		return cfg, err
	}
	if cfg.ClientSecret, err = requiredString("PAYPAL_CLIENT_SECRET"); err != nil {
		return cfg, err
	}
	cfg.Currency = strings.TrimSpace(os.Getenv("PAYPAL_CURRENCY"))
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Timeout, err = durationDefault("PAYPAL_TIMEOUT", 15*time.Second); err != nil {
		return cfg, err
	}
	if cfg.TokenRetryMax, err = intDefault("PAYPAL_TOKEN_RETRY_MAX_ATTEMPTS", 3); err != nil {
		return cfg, err
	}
	if cfg.TokenRetryBase, err = durationDefault("PAYPAL_TOKEN_RETRY_BASE_DELAY", 100*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.TokenRetryMaxWait, err = durationDefault("PAYPAL_TOKEN_RETRY_MAX_DELAY", time.Second); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadCheckout reads saga timing and breaker config from env.
func LoadCheckout() (CheckoutConfig, error) {
	cfg := CheckoutConfig{}
	var err error

	if cfg.PendingTTL, err = durationDefault("CHECKOUT_PENDING_TTL", 900*time.Second); err != nil {
		return cfg, err
	}
	if cfg.BreakerMaxFailures, err = intDefault("CHECKOUT_BREAKER_MAX_FAILURES", 1); err != nil {
		return cfg, err
	}
	if cfg.BreakerResetTimeout, err = durationDefault("CHECKOUT_BREAKER_RESET_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadHTTP reads public API server config from env.
func LoadHTTP() (HTTPConfig, error) {
	cfg := HTTPConfig{}
	var err error

	cfg.Addr = strings.TrimSpace(os.Getenv("HTTP_ADDR"))
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.RateLimitInterval, err = durationDefault("HTTP_RATE_LIMIT_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = intDefault("HTTP_RATE_LIMIT_BURST", 0); err != nil {
		return cfg, err
	}
	if raw := strings.TrimSpace(os.Getenv("HTTP_CORS_ORIGINS")); raw != "" {
		for _, origin := range strings.Split(raw, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	return cfg, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func durationDefault(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func intDefault(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}
