package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	SLA          SLAConfig
	Aggregate    AggregateConfig
	Worker       WorkerConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines token verification parameters. Tokens are issued by an
// external identity service; this service only verifies them.
type AuthConfig struct {
	JWTSecret string
}

// SLAConfig holds default SLA budgets and the breach warning window.
type SLAConfig struct {
	DefaultResponseMinutes   int
	DefaultResolutionMinutes int
	AtRiskWindowMinutes      int
	CacheTTLSeconds          int
	CacheEnabled             bool
}

// AggregateConfig bounds the ticket detail fan-out.
type AggregateConfig struct {
	FetchTimeoutSeconds int
}

// WorkerConfig drives the SLA monitor scheduler.
type WorkerConfig struct {
	SLAMonitorEnabled         bool
	SLAMonitorIntervalSeconds int
	SLAMonitorBatchSize       int
}

// NotificationConfig holds outbound notification endpoints.
type NotificationConfig struct {
	WebhookURL   string
	RedisChannel string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticketdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
		},
		SLA: SLAConfig{
			DefaultResponseMinutes:   getEnvAsInt("SLA_DEFAULT_RESPONSE_MINUTES", 60),
			DefaultResolutionMinutes: getEnvAsInt("SLA_DEFAULT_RESOLUTION_MINUTES", 4320),
			AtRiskWindowMinutes:      getEnvAsInt("SLA_AT_RISK_WINDOW_MINUTES", 1440),
			CacheTTLSeconds:          getEnvAsInt("SLA_CACHE_TTL_SECONDS", 60),
			CacheEnabled:             getEnvAsBool("SLA_CACHE_ENABLED", false),
		},
		Aggregate: AggregateConfig{
			FetchTimeoutSeconds: getEnvAsInt("AGGREGATE_FETCH_TIMEOUT_SECONDS", 5),
		},
		Worker: WorkerConfig{
			SLAMonitorEnabled:         getEnvAsBool("SLA_MONITOR_ENABLED", true),
			SLAMonitorIntervalSeconds: getEnvAsInt("SLA_MONITOR_INTERVAL_SECONDS", 60),
			SLAMonitorBatchSize:       getEnvAsInt("SLA_MONITOR_BATCH_SIZE", 200),
		},
		Notification: NotificationConfig{
			WebhookURL:   getEnv("NOTIFY_WEBHOOK_URL", ""),
			RedisChannel: getEnv("NOTIFY_REDIS_CHANNEL", "ticketdesk.events"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// FetchTimeout returns the per-source aggregation bound.
func (a AggregateConfig) FetchTimeout() time.Duration {
	if a.FetchTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.FetchTimeoutSeconds) * time.Second
}

// CacheTTL returns the SLA status cache lifetime.
func (s SLAConfig) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// SLAMonitorInterval returns the scheduler tick.
func (w WorkerConfig) SLAMonitorInterval() time.Duration {
	if w.SLAMonitorIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(w.SLAMonitorIntervalSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
