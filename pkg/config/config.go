package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Repricing    RepricingConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Repricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"REPRICER_APP_ENV" required:"true"`
	Port         string `envconfig:"REPRICER_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"REPRICER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"REPRICER_LOG_WARN_STACK" default:"false"`
	// MetricsPort exposes /metrics from the worker binaries; empty disables it.
	MetricsPort string `envconfig:"REPRICER_METRICS_PORT"`

	CORSAllowedOrigins []string `envconfig:"REPRICER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev) || strings.EqualFold(a.Env, "development")
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

type ServiceConfig struct {
	Kind string `envconfig:"REPRICER_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"REPRICER_DB_DSN"`
	Driver string `envconfig:"REPRICER_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"REPRICER_DB_HOST"`
	LegacyPort     int    `envconfig:"REPRICER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"REPRICER_DB_USER"`
	LegacyPassword string `envconfig:"REPRICER_DB_PASSWORD"`
	LegacyName     string `envconfig:"REPRICER_DB_NAME"`
	LegacySSLMode  string `envconfig:"REPRICER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"REPRICER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"REPRICER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"REPRICER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"REPRICER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery logs statements slower than this at warn; zero disables it.
	SlowQuery time.Duration `envconfig:"REPRICER_DB_SLOW_QUERY" default:"500ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"REPRICER_REDIS_URL"`
	Address      string        `envconfig:"REPRICER_REDIS_ADDR"`
	Password     string        `envconfig:"REPRICER_REDIS_PASSWORD"`
	DB           int           `envconfig:"REPRICER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REPRICER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REPRICER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REPRICER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REPRICER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"REPRICER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"REPRICER_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"REPRICER_AUTO_MIGRATE" default:"false"`
}

// RepricingConfig tunes the scheduled sweep and history retention.
type RepricingConfig struct {
	SchedulerInterval         time.Duration `envconfig:"REPRICER_SCHEDULER_INTERVAL" default:"5m"`
	HistoryRetentionDays      int           `envconfig:"REPRICER_HISTORY_RETENTION_DAYS" default:"30"`
	BatchConcurrency          int           `envconfig:"REPRICER_BATCH_CONCURRENCY" default:"4"`
	LockTTL                   time.Duration `envconfig:"REPRICER_LOCK_TTL" default:"30m"`
	DefaultMonitoringInterval int           `envconfig:"REPRICER_DEFAULT_MONITORING_INTERVAL_MINUTES" default:"60"`
}

// HistoryRetention returns the retention window as a duration.
func (r RepricingConfig) HistoryRetention() time.Duration {
	if r.HistoryRetentionDays <= 0 {
		return DefaultHistoryRetentionDays * 24 * time.Hour
	}
	return time.Duration(r.HistoryRetentionDays) * 24 * time.Hour
}

func (r RepricingConfig) validate() error {
	if r.BatchConcurrency < 0 {
		return fmt.Errorf("%s must not be negative", EnvBatchConcurrency)
	}
	if r.HistoryRetentionDays < 0 {
		return fmt.Errorf("%s must not be negative", EnvHistoryRetentionDays)
	}
	return nil
}

type GCPConfig struct {
	ProjectID       string `envconfig:"REPRICER_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"REPRICER_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	PricingTopic          string `envconfig:"REPRICER_PUBSUB_PRICING_TOPIC" default:"repricer-pricing-events"`
	AnalyticsSubscription string `envconfig:"REPRICER_PUBSUB_ANALYTICS_SUBSCRIPTION" default:"repricer-pricing-analytics"`
}

// BigQueryConfig names the dataset the analytics worker streams pricing events into.
type BigQueryConfig struct {
	Dataset            string `envconfig:"REPRICER_BIGQUERY_DATASET" default:"repricer"`
	PricingEventsTable string `envconfig:"REPRICER_BIGQUERY_PRICING_EVENTS_TABLE" default:"pricing_events"`
	BatchSize          int    `envconfig:"REPRICER_BIGQUERY_BATCH_SIZE" default:"1"`
}

// RateLimitConfig throttles manual batch runs per organization. A zero limit disables it.
type RateLimitConfig struct {
	RunWindow time.Duration `envconfig:"REPRICER_RATE_LIMIT_RUN_WINDOW" default:"1m"`
	RunLimit  int           `envconfig:"REPRICER_RATE_LIMIT_RUN_LIMIT" default:"5"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"REPRICER_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"REPRICER_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"REPRICER_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"REPRICER_OUTBOX_RETENTION_DAYS" default:"7"`

	IdempotencyTTL time.Duration `envconfig:"REPRICER_EVENT_IDEMPOTENCY_TTL" default:"168h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
