// Package config loads process configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server process needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	KafkaBrokers  []string
	AuditTopic    string
	JWTSigningKey string

	// CryptoKey and CryptoIV protect pseudonymization records at rest.
	CryptoKey string
	CryptoIV  string

	AgentCacheTTL     time.Duration
	QueuePollInterval time.Duration
	PurgeInterval     time.Duration

	// SeedTenant, when set to a tenant UUID, installs the default agent
	// roster for that tenant at startup.
	SeedTenant string
}

// RedisConfig configures the optional redis cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables, applying development
// defaults where unset.
func FromEnv() Config {
	return Config{
		Addr:          envOr("MAESTRO_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("MAESTRO_DATABASE_URL"),
		KafkaBrokers:  splitList(os.Getenv("MAESTRO_KAFKA_BROKERS")),
		AuditTopic:    envOr("MAESTRO_AUDIT_TOPIC", "maestro.audit"),
		JWTSigningKey: envOr("MAESTRO_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CryptoKey:     envOr("MAESTRO_CRYPTO_KEY", "dev-crypto-key-change-in-production"),
		CryptoIV:      envOr("MAESTRO_CRYPTO_IV", "dev-crypto-iv"),
		Redis: RedisConfig{
			URL:          os.Getenv("MAESTRO_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		SeedTenant:        os.Getenv("MAESTRO_SEED_TENANT"),
		AgentCacheTTL:     durationOr("MAESTRO_AGENT_CACHE_TTL", time.Minute),
		QueuePollInterval: durationOr("MAESTRO_QUEUE_POLL_INTERVAL", time.Second),
		PurgeInterval:     durationOr("MAESTRO_PURGE_INTERVAL", time.Hour),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
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

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
