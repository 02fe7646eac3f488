package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the documented security policy: five failures lock an
// account for thirty minutes, five admissions per source per fifteen minutes.
const (
	DefaultTokenTTL         = 60 * time.Minute
	DefaultTokenAlgorithm   = "HS256"
	DefaultLockoutThreshold = 5
	DefaultLockoutDuration  = 30 * time.Minute
	DefaultRateLimitMax     = 5
	DefaultRateLimitWindow  = 15 * time.Minute
	DefaultAddr             = ":8080"

	minSecretLength = 32
)

// Config carries every recognized startup option. All of it is resolved once
// at process start; a missing or malformed secret is a startup failure, not a
// runtime condition.
type Config struct {
	Addr  string
	PGDSN string

	TokenSecret    string
	TokenAlgorithm string
	TokenTTL       time.Duration

	LockoutThreshold int
	LockoutDuration  time.Duration

	RateLimitMaxAttempts int
	RateLimitWindow      time.Duration
}

var supportedAlgorithms = map[string]struct{}{
	"HS256": {},
	"HS384": {},
	"HS512": {},
}

// Load resolves configuration from GATEHOUSE_* environment variables.
func Load() (Config, error) {
	cfg := Config{
		Addr:                 envOr("GATEHOUSE_ADDR", DefaultAddr),
		PGDSN:                strings.TrimSpace(os.Getenv("GATEHOUSE_PG_DSN")),
		TokenSecret:          strings.TrimSpace(os.Getenv("GATEHOUSE_TOKEN_SECRET")),
		TokenAlgorithm:       envOr("GATEHOUSE_TOKEN_ALG", DefaultTokenAlgorithm),
		TokenTTL:             DefaultTokenTTL,
		LockoutThreshold:     DefaultLockoutThreshold,
		LockoutDuration:      DefaultLockoutDuration,
		RateLimitMaxAttempts: DefaultRateLimitMax,
		RateLimitWindow:      DefaultRateLimitWindow,
	}

	var err error
	if cfg.TokenTTL, err = envDuration("GATEHOUSE_TOKEN_TTL", cfg.TokenTTL); err != nil {
		return Config{}, err
	}
	if cfg.LockoutDuration, err = envDuration("GATEHOUSE_LOCKOUT_DURATION", cfg.LockoutDuration); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = envDuration("GATEHOUSE_RATE_LIMIT_WINDOW", cfg.RateLimitWindow); err != nil {
		return Config{}, err
	}
	if cfg.LockoutThreshold, err = envInt("GATEHOUSE_LOCKOUT_THRESHOLD", cfg.LockoutThreshold); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitMaxAttempts, err = envInt("GATEHOUSE_RATE_LIMIT_MAX_ATTEMPTS", cfg.RateLimitMaxAttempts); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.TokenSecret == "" {
		return errors.New("config: GATEHOUSE_TOKEN_SECRET is required")
	}
	if len(c.TokenSecret) < minSecretLength {
		return fmt.Errorf("config: GATEHOUSE_TOKEN_SECRET must be at least %d bytes", minSecretLength)
	}
	if _, ok := supportedAlgorithms[c.TokenAlgorithm]; !ok {
		return fmt.Errorf("config: unsupported token algorithm %q", c.TokenAlgorithm)
	}
	if c.TokenTTL <= 0 {
		return errors.New("config: token TTL must be positive")
	}
	if c.LockoutThreshold < 1 {
		return errors.New("config: lockout threshold must be at least 1")
	}
	if c.LockoutDuration <= 0 {
		return errors.New("config: lockout duration must be positive")
	}
	if c.RateLimitMaxAttempts < 1 {
		return errors.New("config: rate limit max attempts must be at least 1")
	}
	if c.RateLimitWindow <= 0 {
		return errors.New("config: rate limit window must be positive")
	}
	return nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("config: %s must be positive", key)
	}
	return d, nil
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer", key)
	}
	return v, nil
}
