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
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Guard        GuardConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Monitor      MonitorConfig
	Simulator    SimulatorConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DriverSQLite
		if cfg.DB.DSN == "" {
			cfg.DB.DSN = cfg.FeatureFlags.SQLitePath
		}
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"EVENTMONITOR_APP_ENV" required:"true"`
	Port         string `envconfig:"EVENTMONITOR_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"EVENTMONITOR_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"EVENTMONITOR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"EVENTMONITOR_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"EVENTMONITOR_DB_DSN"`
	Driver string `envconfig:"EVENTMONITOR_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"EVENTMONITOR_DB_HOST"`
	LegacyPort     int    `envconfig:"EVENTMONITOR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"EVENTMONITOR_DB_USER"`
	LegacyPassword string `envconfig:"EVENTMONITOR_DB_PASSWORD"`
	LegacyName     string `envconfig:"EVENTMONITOR_DB_NAME"`
	LegacySSLMode  string `envconfig:"EVENTMONITOR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"EVENTMONITOR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"EVENTMONITOR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"EVENTMONITOR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"EVENTMONITOR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"EVENTMONITOR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"EVENTMONITOR_REDIS_ADDR"`
	Password     string        `envconfig:"EVENTMONITOR_REDIS_PASSWORD"`
	DB           int           `envconfig:"EVENTMONITOR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"EVENTMONITOR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"EVENTMONITOR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"EVENTMONITOR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"EVENTMONITOR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"EVENTMONITOR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"EVENTMONITOR_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"EVENTMONITOR_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"EVENTMONITOR_JWT_EXPIRATION_MINUTES" required:"true"`
}

// TokenTTL returns the access token TTL configured in minutes.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"EVENTMONITOR_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"EVENTMONITOR_SQLITE_PATH" default:"eventmonitor.db"`
	AutoMigrate bool   `envconfig:"EVENTMONITOR_AUTO_MIGRATE" default:"false"`
}

type GuardConfig struct {
	ProcessedTTL time.Duration `envconfig:"EVENTMONITOR_GUARD_PROCESSED_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"EVENTMONITOR_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"EVENTMONITOR_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"EVENTMONITOR_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TelemetryTopic        string `envconfig:"EVENTMONITOR_PUBSUB_TELEMETRY_TOPIC" default:"telemetry-events"`
	TelemetrySubscription string `envconfig:"EVENTMONITOR_PUBSUB_TELEMETRY_SUBSCRIPTION" required:"true"`
}

type BigQueryConfig struct {
	Export            bool   `envconfig:"EVENTMONITOR_BIGQUERY_EXPORT" default:"false"`
	Dataset           string `envconfig:"EVENTMONITOR_BIGQUERY_DATASET" default:"eventmonitor"`
	JournalTable      string `envconfig:"EVENTMONITOR_BIGQUERY_JOURNAL_TABLE" default:"journal_events"`
	TableExpirationMS int    `envconfig:"EVENTMONITOR_BIGQUERY_TABLE_EXPIRATION_MS" default:"0"`
}

type MonitorConfig struct {
	Username       string `envconfig:"EVENTMONITOR_MONITOR_USERNAME" default:"monitor"`
	SourceTag      string `envconfig:"EVENTMONITOR_MONITOR_SOURCE_TAG" default:"event-monitor"`
	LogPath        string `envconfig:"EVENTMONITOR_MONITOR_LOG_PATH" default:"sensor_readings.log"`
	BatchSize      int    `envconfig:"EVENTMONITOR_MONITOR_BATCH_SIZE" default:"100"`
	PollIntervalMS int    `envconfig:"EVENTMONITOR_MONITOR_POLL_MS" default:"1000"`
}

type SimulatorConfig struct {
	Username      string `envconfig:"EVENTMONITOR_SIM_USERNAME" default:"simulator"`
	DeviceID      string `envconfig:"EVENTMONITOR_SIM_DEVICE_ID" default:"dev-windows"`
	SpoolPath     string `envconfig:"EVENTMONITOR_SIM_SPOOL_PATH" default:"spool_unsent_events.jsonl"`
	RepeatEvery   int    `envconfig:"EVENTMONITOR_SIM_REPEAT_EVERY" default:"0"`
	PublishExpiry int    `envconfig:"EVENTMONITOR_SIM_PUBLISH_TIMEOUT_SECONDS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" || db.Driver == DriverSQLite {
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
