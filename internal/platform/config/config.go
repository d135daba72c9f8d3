package config

import (
	"os"
	"strings"
	"time"
)

// Config captures process-level configuration.
type Config struct {
	Addr            string
	PostgresURL     string
	RedisURL        string
	KafkaBrokers    []string
	JWTSigningKey   string
	ConnLifetime    time.Duration
	ShutdownTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
// Empty PostgresURL selects the in-memory store; empty RedisURL disables the
// unread cache; empty KafkaBrokers routes audit events to the in-process
// store.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("FAMLINK_ADDR", ":8080"),
		PostgresURL:     os.Getenv("FAMLINK_POSTGRES_URL"),
		RedisURL:        os.Getenv("FAMLINK_REDIS_URL"),
		ConnLifetime:    30 * time.Minute,
		ShutdownTimeout: 10 * time.Second,
	}

	if brokers := os.Getenv("FAMLINK_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cfg.JWTSigningKey = os.Getenv("JWT_SIGNING_KEY")
	if cfg.JWTSigningKey == "" {
		// Use a default for development - should be overridden in production
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	if d, err := time.ParseDuration(os.Getenv("FAMLINK_CONN_LIFETIME")); err == nil && d > 0 {
		cfg.ConnLifetime = d
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
