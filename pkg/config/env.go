package config

// EnvPrefix is passed to envconfig; field tags spell the full variable names.
const EnvPrefix = "eventmonitor"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	EnvAppEnv    = "EVENTMONITOR_APP_ENV"
	EnvPort      = "EVENTMONITOR_APP_PORT"
	EnvLogLevel  = "EVENTMONITOR_LOG_LEVEL"
	EnvDBDSN     = "EVENTMONITOR_DB_DSN"
	EnvDBHost    = "EVENTMONITOR_DB_HOST"
	EnvDBUser    = "EVENTMONITOR_DB_USER"
	EnvDBName    = "EVENTMONITOR_DB_NAME"
	EnvRedisURL  = "EVENTMONITOR_REDIS_URL"
	EnvJWTSecret = "EVENTMONITOR_JWT_SECRET"
	EnvJWTIssuer = "EVENTMONITOR_JWT_ISSUER"
	EnvJWTExp    = "EVENTMONITOR_JWT_EXPIRATION_MINUTES"

	EnvGCPProjectID         = "EVENTMONITOR_GCP_PROJECT_ID"
	EnvPubSubTelemetryTopic = "EVENTMONITOR_PUBSUB_TELEMETRY_TOPIC"
	EnvPubSubTelemetrySub   = "EVENTMONITOR_PUBSUB_TELEMETRY_SUBSCRIPTION"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
