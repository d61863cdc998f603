// Package config builds process configuration from environment variables so
// main stays lean. Tier policy numbers live here; services validate them at
// construction and fail fast on gaps.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// TierLimits captures the per-tier policy knobs: daily search quota, result
// cap, and whether human verification is required before consuming quota.
type TierLimits struct {
	DailyLimit       int
	ResultCap        int
	RequiresFriction bool
}

// RedisConfig captures connection settings for the primary quota store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config is the full process configuration.
type Config struct {
	Addr string
	Env  string

	Redis RedisConfig

	// Catalog sources. DatabaseURL wins when both are set.
	CatalogPath string
	DatabaseURL string

	// Audit event sink. Empty brokers means events are logged only.
	KafkaBrokers []string
	AuditTopic   string

	// Cloudflare Turnstile.
	TurnstileSecret  string
	TurnstileSiteKey string

	// HMAC key for the trusted-override admin token. Override is disabled
	// entirely when empty.
	OverrideSigningKey string

	// Spatial parameters, meters.
	SearchRadiusM  float64
	MinSeparationM float64

	// Service area bounding box: lon_min, lat_min, lon_max, lat_max.
	BBox [4]float64

	// Quota store behavior.
	PrimaryTimeout time.Duration
	ProbeInterval  time.Duration

	FreeTier TierLimits
	PaidTier TierLimits
}

// FromEnv builds a Config from environment variables with development
// defaults. The Da Nang bounding box and tier numbers match product policy.
func FromEnv() Config {
	cfg := Config{
		Addr:               envStr("DILLDRILL_ADDR", ":8080"),
		Env:                envStr("ENV", "development"),
		CatalogPath:        envStr("CATALOG_PATH", "static/masterlist.json"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		AuditTopic:         envStr("AUDIT_TOPIC", "dilldrill.audit"),
		TurnstileSecret:    os.Getenv("CLOUDFLARE_TURNSTILE_SECRET"),
		TurnstileSiteKey:   os.Getenv("CLOUDFLARE_TURNSTILE_SITE_KEY"),
		OverrideSigningKey: os.Getenv("ADMIN_OVERRIDE_KEY"),
		SearchRadiusM:      envFloat("SEARCH_RADIUS_M", 100),
		MinSeparationM:     envFloat("MIN_SEPARATION_M", 30),
		BBox:               [4]float64{108.10, 16.00, 108.30, 16.12},
		PrimaryTimeout:     envDuration("QUOTA_PRIMARY_TIMEOUT", 2*time.Second),
		ProbeInterval:      envDuration("QUOTA_PROBE_INTERVAL", 30*time.Second),
		FreeTier: TierLimits{
			DailyLimit:       envInt("FREE_TIER_DAILY_LIMIT", 2),
			ResultCap:        envInt("FREE_TIER_RESULTS", 1),
			RequiresFriction: true,
		},
		PaidTier: TierLimits{
			DailyLimit: envInt("PAID_TIER_DAILY_LIMIT", 50),
			ResultCap:  envInt("PAID_TIER_RESULTS", 5),
		},
	}

	cfg.Redis = RedisConfig{
		URL:          os.Getenv("REDIS_URL"),
		PoolSize:     envInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
