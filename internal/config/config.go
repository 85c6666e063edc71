package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Mail     MailConfig
	Inbound  InboundConfig
	Jobs     JobsConfig
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
	MigrationsDir  string
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
	Level       string
	Service     string
	Development bool
}

// AuthConfig describes how identity-provider tokens are verified.
type AuthConfig struct {
	JWTSecret             string
	JWTIssuer             string
	SessionTimeoutSeconds int
	ProfileCacheSeconds   int
	BcryptCost            int
}

// MailConfig selects and configures the outbound mail provider.
type MailConfig struct {
	// Provider is one of "resend", "graph" or "log". Empty picks resend when
	// an API key is present and falls back to log.
	Provider     string
	From         string
	ReplyTo      string
	ResendAPIKey string
	ResendURL    string
	Graph        GraphConfig
	HTTPTimeout  time.Duration
}

// GraphConfig holds Microsoft Graph client-credential settings.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	TokenURL     string
}

// InboundConfig configures webhook and mailbox ingestion.
type InboundConfig struct {
	WebhookSecretHash string
	MailboxesFile     string
	LookbackHours     int
	Mailboxes         []MailboxAccount
}

// JobsConfig configures the periodic delivery and polling jobs.
type JobsConfig struct {
	DeliverySchedule  string
	DeliveryBatchSize int
	MailboxSchedule   string
	TaskTimeout       time.Duration
	LockTTL           time.Duration
	MetricsAddr       string
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
			Name:                  getEnv("APP_NAME", "greenhouse-tickets"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 8),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnv("APP_ENV", "development") == "development",
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			JWTIssuer:             os.Getenv("AUTH_JWT_ISSUER"),
			SessionTimeoutSeconds: getEnvAsInt("AUTH_SESSION_TIMEOUT_SECONDS", 8),
			ProfileCacheSeconds:   getEnvAsInt("AUTH_PROFILE_CACHE_SECONDS", 30),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
		},
		Mail: MailConfig{
			Provider:     strings.ToLower(os.Getenv("MAIL_PROVIDER")),
			From:         getEnv("MAIL_FROM", "Great Lakes Greenhouses <noreply@greatlakesg.com>"),
			ReplyTo:      getEnv("MAIL_REPLY_TO", "tickets@greatlakesg.com"),
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			ResendURL:    getEnv("RESEND_API_URL", "https://api.resend.com/emails"),
			Graph: GraphConfig{
				TenantID:     os.Getenv("MICROSOFT_TENANT_ID"),
				ClientID:     os.Getenv("MICROSOFT_CLIENT_ID"),
				ClientSecret: os.Getenv("MICROSOFT_CLIENT_SECRET"),
				BaseURL:      getEnv("MICROSOFT_GRAPH_URL", "https://graph.microsoft.com/v1.0"),
				TokenURL:     os.Getenv("MICROSOFT_TOKEN_URL"),
			},
			HTTPTimeout: getEnvAsDuration("MAIL_HTTP_TIMEOUT", 15*time.Second),
		},
		Inbound: InboundConfig{
			WebhookSecretHash: os.Getenv("INBOUND_WEBHOOK_SECRET_HASH"),
			MailboxesFile:     os.Getenv("INBOUND_MAILBOXES_FILE"),
			LookbackHours:     getEnvAsInt("INBOUND_LOOKBACK_HOURS", 24),
		},
		Jobs: JobsConfig{
			DeliverySchedule:  getEnv("JOBS_DELIVERY_SCHEDULE", "0 */2 * * * *"),
			DeliveryBatchSize: getEnvAsInt("JOBS_DELIVERY_BATCH_SIZE", 10),
			MailboxSchedule:   getEnv("JOBS_MAILBOX_SCHEDULE", "30 */5 * * * *"),
			TaskTimeout:       getEnvAsDuration("JOBS_TASK_TIMEOUT", 2*time.Minute),
			LockTTL:           getEnvAsDuration("JOBS_LOCK_TTL", 5*time.Minute),
			MetricsAddr:       getEnv("JOBS_METRICS_ADDR", ":9102"),
		},
	}

	cfg.Logger.Service = cfg.App.Name

	if cfg.Inbound.MailboxesFile != "" {
		mailboxes, err := LoadMailboxes(cfg.Inbound.MailboxesFile)
		if err != nil {
			return nil, err
		}
		cfg.Inbound.Mailboxes = mailboxes
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

// SessionTimeout bounds a single session lookup.
func (a AuthConfig) SessionTimeout() time.Duration {
	if a.SessionTimeoutSeconds <= 0 {
		return 8 * time.Second
	}
	return time.Duration(a.SessionTimeoutSeconds) * time.Second
}

// ProfileCacheTTL returns how long resolved profiles stay cached.
func (a AuthConfig) ProfileCacheTTL() time.Duration {
	if a.ProfileCacheSeconds <= 0 {
		return 0
	}
	return time.Duration(a.ProfileCacheSeconds) * time.Second
}

// Lookback is the default watermark distance when none has been stored.
func (i InboundConfig) Lookback() time.Duration {
	if i.LookbackHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(i.LookbackHours) * time.Hour
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

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
