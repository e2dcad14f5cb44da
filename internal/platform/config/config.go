package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration. FromEnv builds it from
// environment variables so main stays lean.
type Server struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	StaffTokenTTL time.Duration

	// TimezoneName scopes calendar days for queue numbering and open
	// readings. Defaults to the clinic's local zone.
	TimezoneName string

	// AdmissionMaxRetries bounds the allocate-and-insert retry loop when a
	// concurrent admission wins the queue number race.
	AdmissionMaxRetries int
}

// RedisConfig configures the queue display board cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the queue lifecycle event stream. Empty brokers
// disable publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

func FromEnv() Server {
	cfg := Server{
		Addr:                envOr("KIOSK_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("KIOSK_DATABASE_URL"),
		JWTSigningKey:       os.Getenv("KIOSK_JWT_SIGNING_KEY"),
		StaffTokenTTL:       envDurationOr("KIOSK_STAFF_TOKEN_TTL", 8*time.Hour),
		TimezoneName:        envOr("KIOSK_TIMEZONE", "Asia/Manila"),
		AdmissionMaxRetries: envIntOr("KIOSK_ADMISSION_MAX_RETRIES", 3),
		Redis: RedisConfig{
			URL:          os.Getenv("KIOSK_REDIS_URL"),
			PoolSize:     envIntOr("KIOSK_REDIS_POOL_SIZE", 10),
			DialTimeout:  envDurationOr("KIOSK_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("KIOSK_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("KIOSK_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Topic: envOr("KIOSK_KAFKA_TOPIC", "kiosk.queue.events"),
		},
	}
	if brokers := os.Getenv("KIOSK_KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers)
	}
	if cfg.JWTSigningKey == "" {
		// Development default - must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

// Location resolves the configured timezone, falling back to UTC when the
// zone database doesn't know the name.
func (s Server) Location() *time.Location {
	loc, err := time.LoadLocation(s.TimezoneName)
	if err != nil {
		return time.UTC
	}
	return loc
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
