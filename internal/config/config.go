package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Cache medium names accepted in CACHE_MEDIUM.
const (
	MediumSQLite = "sqlite"
	MediumFile   = "file"
	MediumNone   = "none"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port       string
	DBPath     string
	DBLogLevel string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	CacheTTL           time.Duration
	CacheMaxSize       int
	CachePruneInterval time.Duration
	CacheMedium        string
	CacheDir           string
	CacheStatsKey      string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads the configuration from the environment, falling back to defaults.
func Load() Config {
	cfg := Config{
		Port:       getEnv("PORT", "8008"),
		DBPath:     getEnv("DB_PATH", "tasks-management.db"),
		DBLogLevel: getEnv("DB_LOG_LEVEL", "warn"),

		JWTSecret:   getEnv("JWT_SECRET", "development-insecure-secret-change-me"),
		JWTIssuer:   getEnv("JWT_ISSUER", "task-management-api"),
		JWTAudience: getEnv("JWT_AUDIENCE", "task-management-clients"),
		JWTTTL:      getEnvDuration("JWT_TTL", 24*time.Hour),

		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheMaxSize:       getEnvInt("CACHE_MAX_SIZE", 100),
		CachePruneInterval: getEnvDuration("CACHE_PRUNE_INTERVAL", time.Minute),
		CacheMedium:        getEnv("CACHE_MEDIUM", MediumSQLite),
		CacheDir:           getEnv("CACHE_DIR", ".cache"),
		CacheStatsKey:      getEnv("CACHE_STATS_KEY", "cache:stats"),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 40),
	}

	switch cfg.CacheMedium {
	case MediumSQLite, MediumFile, MediumNone:
	default:
		log.Printf("config: unknown CACHE_MEDIUM %q, using %q", cfg.CacheMedium, MediumSQLite)
		cfg.CacheMedium = MediumSQLite
	}
	return cfg
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("config: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("config: invalid %s=%q, using %g", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
