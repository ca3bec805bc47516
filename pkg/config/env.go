package config

// EnvPrefix is passed to envconfig; every field carries its full name so the prefix is informational.
const EnvPrefix = "REPRICER"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DefaultHistoryRetentionDays = 30
)

const (
	EnvAppEnv   = "REPRICER_APP_ENV"
	EnvPort     = "REPRICER_APP_PORT"
	EnvLogLevel = "REPRICER_LOG_LEVEL"

	EnvDBDSN  = "REPRICER_DB_DSN"
	EnvDBHost = "REPRICER_DB_HOST"
	EnvDBUser = "REPRICER_DB_USER"
	EnvDBName = "REPRICER_DB_NAME"

	EnvRedisURL = "REPRICER_REDIS_URL"

	EnvSchedulerInterval    = "REPRICER_SCHEDULER_INTERVAL"
	EnvHistoryRetentionDays = "REPRICER_HISTORY_RETENTION_DAYS"
	EnvBatchConcurrency     = "REPRICER_BATCH_CONCURRENCY"
	EnvLockTTL              = "REPRICER_LOCK_TTL"

	EnvGCPProjectID       = "REPRICER_GCP_PROJECT_ID"
	EnvPubSubPricingTopic = "REPRICER_PUBSUB_PRICING_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
