package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env   string
	Port  int
	Store string // "postgres" | "memory"
	DBURL string

	DBMaxConns     int
	MigrateOnStart bool

	JWTSecret    string
	JWTAccessTTL time.Duration
	BcryptCost   int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSAllowedOrigins []string
	MaxBodyBytes       int64
	RequestTimeout     time.Duration

	AdminEmail    string
	AdminPassword string
	AdminName     string

	OTelEnabled  bool
	OTelEndpoint string

	LoginRateLimit  int
	LoginRateWindow time.Duration

	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	WorkerMaxAttempts  int
	WorkerHealthPort   int

	// local knobs for exercising the retry path
	NotifierDelay time.Duration
	NotifierFail  bool
}

// Load reads .env when present and then the process environment. Real
// environment variables win over the file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		Store: getEnv("APP_STORE", "postgres"),
		DBURL: buildDBURL(),

		DBMaxConns:     getEnvInt("DB_MAX_CONNS", 10),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		JWTSecret:    getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTAccessTTL: getEnvDuration("JWT_ACCESS_TTL", 15*time.Minute),
		BcryptCost:   getEnvInt("BCRYPT_COST", 10),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		MaxBodyBytes:       int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 3*time.Second),

		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		AdminName:     getEnv("ADMIN_NAME", "Administrator"),

		OTelEnabled:  getEnvBool("OTEL_ENABLED", false),
		OTelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),

		LoginRateLimit:  getEnvInt("LOGIN_RATE_LIMIT", 10),
		LoginRateWindow: getEnvDuration("LOGIN_RATE_WINDOW", time.Minute),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 500*time.Millisecond),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 2),
		WorkerMaxAttempts:  getEnvInt("WORKER_MAX_ATTEMPTS", 5),
		WorkerHealthPort:   getEnvInt("WORKER_HEALTH_PORT", 8081),

		NotifierDelay: getEnvDuration("NOTIFIER_DELAY", 0),
		NotifierFail:  getEnvBool("NOTIFIER_FAIL", false),
	}
}

// Validate rejects settings that would make the service unsafe to run.
func (c Config) Validate() error {
	if c.Env != "dev" && c.Env != "test" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set outside dev")
	}
	if c.Store != "postgres" && c.Store != "memory" {
		return fmt.Errorf("APP_STORE must be postgres or memory, got %q", c.Store)
	}
	if c.JWTAccessTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be positive")
	}
	return nil
}

func buildDBURL() string {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		return v
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "libraryhub")
	pass := getEnv("DB_PASSWORD", "libraryhub")
	name := getEnv("DB_NAME", "libraryhub")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

// WithTimeout bounds parent by duration. A nil parent means Background.
func WithTimeout(parent context.Context, duration time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid int env, using fallback", "key", key, "value", v)
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env, using fallback", "key", key, "value", v)
			return fallback
		}
		return d
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
