package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr     string
	LogLevel string

	// DatabaseURL enables the Postgres stores; empty means in-memory.
	DatabaseURL string

	// RedisURL enables the cross-instance reviewer lease; empty disables it.
	RedisURL string
	Redis    RedisConfig

	// KafkaBrokers enables the issuance publisher; empty means issuance
	// requests are logged only.
	KafkaBrokers  []string
	IssuanceTopic string

	// SpeciesFile optionally overrides the built-in allometric parameter
	// table with a YAML file.
	SpeciesFile string

	// DefaultAnnualizationYears divides lifetime CO2 when a tree's age is
	// unknown.
	DefaultAnnualizationYears float64
}

// RedisConfig tunes the go-redis client.
type RedisConfig struct {
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                      envOr("BLUECARBON_ADDR", ":8080"),
		LogLevel:                  envOr("BLUECARBON_LOG_LEVEL", "info"),
		DatabaseURL:               os.Getenv("DATABASE_URL"),
		RedisURL:                  os.Getenv("REDIS_URL"),
		IssuanceTopic:             envOr("ISSUANCE_TOPIC", "issuance.requests"),
		SpeciesFile:               os.Getenv("SPECIES_FILE"),
		DefaultAnnualizationYears: envFloatOr("DEFAULT_ANNUALIZATION_YEARS", 10),
		Redis: RedisConfig{
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitCommas(brokers)
	}
	return cfg
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

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}

func splitCommas(s string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if part := s[start:i]; part != "" {
				out = append(out, part)
			}
			start = i + 1
		}
	}
	return out
}
