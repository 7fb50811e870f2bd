package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures process-level configuration sourced from the environment
// so main stays lean.
type Config struct {
	Addr        string
	PostgresURL string
	Redis       RedisConfig
	Kafka       KafkaConfig

	// CacheTTL bounds staleness of cached aggregates.
	CacheTTL time.Duration
	// TimelinessGrace extends a period's deadline before a submission
	// counts as late.
	TimelinessGrace time.Duration
	// AuditEstimate holds the expected-audit-event multipliers used by the
	// compliance aggregator. The defaults are a heuristic, not a verified
	// requirement; tune per deployment.
	AuditEstimate AuditEstimate
}

// RedisConfig configures the cache backend. An empty URL disables redis and
// falls back to the in-process cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the notification dispatcher. Empty brokers disable
// notifications entirely.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// AuditEstimate weights the entity counts that feed the expected audit
// event heuristic: expected = Data*records + Assessments*assessments +
// Reports*reports.
type AuditEstimate struct {
	Data        float64
	Assessments float64
	Reports     float64
}

// DefaultAuditEstimate reflects the historically observed event volume per
// entity type.
func DefaultAuditEstimate() AuditEstimate {
	return AuditEstimate{Data: 2.5, Assessments: 3, Reports: 5}
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:        envOr("KINERJA_ADDR", ":8080"),
		PostgresURL: os.Getenv("KINERJA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("KINERJA_REDIS_URL"),
			PoolSize:     envInt("KINERJA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("KINERJA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("KINERJA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("KINERJA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("KINERJA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("KINERJA_KAFKA_TOPIC", "kinerja.notifications"),
		},
		CacheTTL:        envDuration("KINERJA_CACHE_TTL", 5*time.Minute),
		TimelinessGrace: envDuration("KINERJA_TIMELINESS_GRACE", 10*24*time.Hour),
	}
	defaults := DefaultAuditEstimate()
	cfg.AuditEstimate = AuditEstimate{
		Data:        envFloat("KINERJA_AUDIT_ESTIMATE_DATA", defaults.Data),
		Assessments: envFloat("KINERJA_AUDIT_ESTIMATE_ASSESSMENTS", defaults.Assessments),
		Reports:     envFloat("KINERJA_AUDIT_ESTIMATE_REPORTS", defaults.Reports),
	}
	if brokers := os.Getenv("KINERJA_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
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
