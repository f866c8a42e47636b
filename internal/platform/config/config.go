package config

import (
	"os"
	"strconv"
	"time"

	"bloodlink/internal/notify"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	MetricsAddr   string
	PostgresURL   string
	Redis         RedisConfig
	JWTSigningKey string
	SMTP          notify.SMTPConfig

	// MatchingCacheTTL bounds staleness of the donor matching feed.
	MatchingCacheTTL time.Duration
	// AuditBuffer is the audit worker inbox size.
	AuditBuffer int
}

// RedisConfig holds Redis connection tuning. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("BLOODLINK_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	metricsAddr := os.Getenv("BLOODLINK_METRICS_ADDR")
	if metricsAddr == "" {
		metricsAddr = ":9090"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:          addr,
		MetricsAddr:   metricsAddr,
		PostgresURL:   os.Getenv("POSTGRES_URL"),
		JWTSigningKey: jwtSigningKey,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SMTP: notify.SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     envInt("SMTP_PORT", 587),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     os.Getenv("SMTP_FROM"),
		},
		MatchingCacheTTL: envDuration("MATCHING_CACHE_TTL", 30*time.Second),
		AuditBuffer:      envInt("AUDIT_BUFFER", 256),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
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
