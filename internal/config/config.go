package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	AppPort string

	DatabaseDSN   string
	RedisAddr     string
	RedisPassword string

	MatcherURL     string
	MatcherTimeout time.Duration

	AMQPURL string // optional audit mirror

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	TOTPIssuer string

	SessionBackend string // "memory" or "redis"

	SessionTTL    time.Duration
	ChallengeTTL  time.Duration
	CaptureSync   time.Duration
	CaptureVoice  time.Duration
	SweepInterval time.Duration
	LockWait      time.Duration
	RetryBudget   int
}

func Load() (Config, error) {
	cfg := Config{
		AppPort: envDefault("APP_PORT", "8080"),

		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		RedisAddr:     envDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MatcherURL:     os.Getenv("MATCHER_URL"),
		MatcherTimeout: envDuration("MATCHER_TIMEOUT", 5*time.Second),

		AMQPURL: os.Getenv("AMQP_URL"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		TOTPIssuer: envDefault("TOTP_ISSUER", "MedAuth"),

		SessionBackend: envDefault("SESSION_BACKEND", "memory"),

		SessionTTL:    envDuration("SESSION_TTL", 10*time.Minute),
		ChallengeTTL:  envDuration("CHALLENGE_TTL", 120*time.Second),
		CaptureSync:   envDuration("CAPTURE_SYNC_DURATION", 4*time.Second),
		CaptureVoice:  envDuration("CAPTURE_VOICE_DURATION", 10*time.Second),
		SweepInterval: envDuration("SWEEP_INTERVAL", 30*time.Second),
		LockWait:      envDuration("LOCK_WAIT", 2*time.Second),
		RetryBudget:   envInt("RETRY_BUDGET", 5),
	}

	if cfg.DatabaseDSN == "" {
		return Config{}, fmt.Errorf("DATABASE_DSN environment variable is required")
	}
	if cfg.MatcherURL == "" {
		return Config{}, fmt.Errorf("MATCHER_URL environment variable is required")
	}
	if cfg.SessionBackend != "memory" && cfg.SessionBackend != "redis" {
		return Config{}, fmt.Errorf("SESSION_BACKEND must be memory or redis")
	}

	return cfg, nil
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
