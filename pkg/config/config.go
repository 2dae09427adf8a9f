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
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Portal       PortalConfig
	Dispatch     DispatchConfig
	Orders       OrdersConfig
	Cron         CronConfig
	Notify       NotifyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LAUNDRYOPS_APP_ENV" required:"true"`
	Port         string `envconfig:"LAUNDRYOPS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"LAUNDRYOPS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LAUNDRYOPS_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"LAUNDRYOPS_DB_DSN"`
	Driver string `envconfig:"LAUNDRYOPS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LAUNDRYOPS_DB_HOST"`
	LegacyPort     int    `envconfig:"LAUNDRYOPS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LAUNDRYOPS_DB_USER"`
	LegacyPassword string `envconfig:"LAUNDRYOPS_DB_PASSWORD"`
	LegacyName     string `envconfig:"LAUNDRYOPS_DB_NAME"`
	LegacySSLMode  string `envconfig:"LAUNDRYOPS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LAUNDRYOPS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LAUNDRYOPS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LAUNDRYOPS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LAUNDRYOPS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LAUNDRYOPS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LAUNDRYOPS_REDIS_ADDR"`
	Password     string        `envconfig:"LAUNDRYOPS_REDIS_PASSWORD"`
	DB           int           `envconfig:"LAUNDRYOPS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LAUNDRYOPS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LAUNDRYOPS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LAUNDRYOPS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LAUNDRYOPS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LAUNDRYOPS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"LAUNDRYOPS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"LAUNDRYOPS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"LAUNDRYOPS_JWT_EXPIRATION_MINUTES" required:"true"`
}

// PasswordConfig tunes the Argon2id parameters used for password and
// portal-code hashing.
type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"LAUNDRYOPS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"LAUNDRYOPS_ARGON_TIME" default:"1"`
	ArgonParallelism int `envconfig:"LAUNDRYOPS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"LAUNDRYOPS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"LAUNDRYOPS_ARGON_KEY_LEN" default:"32"`
}

// PortalConfig governs the one-time-code customer portal session flow.
type PortalConfig struct {
	CodeLength      int           `envconfig:"LAUNDRYOPS_PORTAL_CODE_LENGTH" default:"6"`
	CodeTTL         time.Duration `envconfig:"LAUNDRYOPS_PORTAL_CODE_TTL" default:"10m"`
	SessionTTL      time.Duration `envconfig:"LAUNDRYOPS_PORTAL_SESSION_TTL" default:"30m"`
	RequestWindow   time.Duration `envconfig:"LAUNDRYOPS_PORTAL_REQUEST_WINDOW" default:"1m"`
	ContactLimit    int           `envconfig:"LAUNDRYOPS_PORTAL_CONTACT_LIMIT" default:"3"`
	IPLimit         int           `envconfig:"LAUNDRYOPS_PORTAL_IP_LIMIT" default:"10"`
	DispatchTimeout time.Duration `envconfig:"LAUNDRYOPS_PORTAL_DISPATCH_TIMEOUT" default:"5s"`
}

// DispatchConfig tunes delivery enrichment and driver scoring.
type DispatchConfig struct {
	AssumedSpeedKmh float64       `envconfig:"LAUNDRYOPS_DISPATCH_ASSUMED_SPEED_KMH" default:"30"`
	ScoringURL      string        `envconfig:"LAUNDRYOPS_DISPATCH_SCORING_URL"`
	ScoringAPIKey   string        `envconfig:"LAUNDRYOPS_DISPATCH_SCORING_API_KEY"`
	ScoringTimeout  time.Duration `envconfig:"LAUNDRYOPS_DISPATCH_SCORING_TIMEOUT" default:"3s"`
	BatchWindow     time.Duration `envconfig:"LAUNDRYOPS_DISPATCH_BATCH_WINDOW" default:"25ms"`
	LocationTTL     time.Duration `envconfig:"LAUNDRYOPS_DISPATCH_LOCATION_TTL" default:"15m"`
}

// OrdersConfig holds order intake pricing knobs.
type OrdersConfig struct {
	DeliveryFee string `envconfig:"LAUNDRYOPS_ORDERS_DELIVERY_FEE" default:"15.00"`
	Currency    string `envconfig:"LAUNDRYOPS_ORDERS_CURRENCY" default:"EGP"`
}

type NotifyConfig struct {
	SendgridAPIKey string        `envconfig:"LAUNDRYOPS_SENDGRID_API_KEY"`
	SendgridFrom   string        `envconfig:"LAUNDRYOPS_SENDGRID_FROM_EMAIL"`
	SMSGatewayURL  string        `envconfig:"LAUNDRYOPS_SMS_GATEWAY_URL"`
	SMSGatewayKey  string        `envconfig:"LAUNDRYOPS_SMS_GATEWAY_KEY"`
	SMSSenderName  string        `envconfig:"LAUNDRYOPS_SMS_SENDER_NAME" default:"LaundryOps"`
	Timeout        time.Duration `envconfig:"LAUNDRYOPS_NOTIFY_TIMEOUT" default:"5s"`
}

// CronConfig tunes the scheduled maintenance worker.
type CronConfig struct {
	Interval            time.Duration `envconfig:"LAUNDRYOPS_CRON_INTERVAL" default:"1h"`
	LockTTL             time.Duration `envconfig:"LAUNDRYOPS_CRON_LOCK_TTL" default:"55m"`
	RequestTTL          time.Duration `envconfig:"LAUNDRYOPS_CRON_REQUEST_TTL" default:"24h"`
	OutboxRetentionDays int           `envconfig:"LAUNDRYOPS_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"LAUNDRYOPS_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"LAUNDRYOPS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LAUNDRYOPS_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LAUNDRYOPS_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LAUNDRYOPS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	AnalyticsTopic string `envconfig:"LAUNDRYOPS_PUBSUB_ANALYTICS_TOPIC" default:"lops-lifecycle-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"LAUNDRYOPS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"LAUNDRYOPS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"LAUNDRYOPS_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
