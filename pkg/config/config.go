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
	Gateway      GatewayConfig
	RateLimit    RateLimitConfig
	Idempotency  IdempotencyConfig
	FeatureFlags FeatureFlagsConfig
	CORS         CORSConfig
	Cron         CronConfig
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
	if err := cfg.Gateway.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BIZVISTAR_APP_ENV" required:"true"`
	Port         string `envconfig:"BIZVISTAR_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BIZVISTAR_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"BIZVISTAR_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"BIZVISTAR_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BIZVISTAR_SERVICE_KIND" default:"api"`
	// MetricsAddr enables the /metrics listener on workers. Empty disables it.
	MetricsAddr string `envconfig:"BIZVISTAR_WORKER_METRICS_ADDR"`
}

type DBConfig struct {
	DSN string `envconfig:"BIZVISTAR_DB_DSN"`

	LegacyHost     string `envconfig:"BIZVISTAR_DB_HOST"`
	LegacyPort     int    `envconfig:"BIZVISTAR_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIZVISTAR_DB_USER"`
	LegacyPassword string `envconfig:"BIZVISTAR_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIZVISTAR_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIZVISTAR_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIZVISTAR_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIZVISTAR_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIZVISTAR_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIZVISTAR_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BIZVISTAR_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIZVISTAR_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIZVISTAR_REDIS_ADDR"`
	Password     string        `envconfig:"BIZVISTAR_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIZVISTAR_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIZVISTAR_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIZVISTAR_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIZVISTAR_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIZVISTAR_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIZVISTAR_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig validates the access tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"BIZVISTAR_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"BIZVISTAR_JWT_ISSUER" required:"true"`
	// Leeway absorbs clock skew with the identity service.
	Leeway time.Duration `envconfig:"BIZVISTAR_JWT_LEEWAY" default:"30s"`
}

// GatewayConfig carries both credential sets; Mode picks the active one.
type GatewayConfig struct {
	Mode          string `envconfig:"BIZVISTAR_RAZORPAY_MODE" default:"test"`
	TestKeyID     string `envconfig:"BIZVISTAR_RAZORPAY_TEST_KEY_ID"`
	TestKeySecret string `envconfig:"BIZVISTAR_RAZORPAY_TEST_KEY_SECRET"`
	LiveKeyID     string `envconfig:"BIZVISTAR_RAZORPAY_LIVE_KEY_ID"`
	LiveKeySecret string `envconfig:"BIZVISTAR_RAZORPAY_LIVE_KEY_SECRET"`
	WebhookSecret string `envconfig:"BIZVISTAR_RAZORPAY_WEBHOOK_SECRET"`
}

// Environment returns the normalized gateway mode (test/live).
func (g GatewayConfig) Environment() string {
	mode := strings.TrimSpace(strings.ToLower(g.Mode))
	if mode == "" {
		return "test"
	}
	return mode
}

// Credentials returns the key pair for the active mode.
func (g GatewayConfig) Credentials() (keyID, keySecret string) {
	if g.Environment() == "live" {
		return g.LiveKeyID, g.LiveKeySecret
	}
	return g.TestKeyID, g.TestKeySecret
}

func (g GatewayConfig) validate() error {
	switch g.Environment() {
	case "test", "live":
		return nil
	default:
		return fmt.Errorf("%s must be test or live, got %q", EnvGatewayMode, g.Mode)
	}
}

type RateLimitConfig struct {
	SubscriptionWindow time.Duration `envconfig:"BIZVISTAR_RATE_LIMIT_SUBSCRIPTION_WINDOW" default:"60m"`
	SubscriptionLimit  int           `envconfig:"BIZVISTAR_RATE_LIMIT_SUBSCRIPTION_LIMIT" default:"10"`
	LogRetention       time.Duration `envconfig:"BIZVISTAR_RATE_LIMIT_LOG_RETENTION" default:"168h"`
	CouponWindow       time.Duration `envconfig:"BIZVISTAR_RATE_LIMIT_COUPON_WINDOW" default:"1m"`
	CouponLimit        int           `envconfig:"BIZVISTAR_RATE_LIMIT_COUPON_LIMIT" default:"30"`
}

type IdempotencyConfig struct {
	TTL time.Duration `envconfig:"BIZVISTAR_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BIZVISTAR_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BIZVISTAR_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"BIZVISTAR_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

type CronConfig struct {
	Interval          time.Duration `envconfig:"BIZVISTAR_CRON_INTERVAL" default:"15m"`
	ReconcileLookback time.Duration `envconfig:"BIZVISTAR_CRON_RECONCILE_LOOKBACK" default:"720h"`
	ReconcileBatch    int           `envconfig:"BIZVISTAR_CRON_RECONCILE_BATCH" default:"100"`
	OutboxRetention   int           `envconfig:"BIZVISTAR_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
	RetentionEvery    time.Duration `envconfig:"BIZVISTAR_CRON_RETENTION_EVERY" default:"24h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"BIZVISTAR_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"BIZVISTAR_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"BIZVISTAR_PUBSUB_BILLING_TOPIC" default:"bv-billing-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIZVISTAR_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIZVISTAR_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIZVISTAR_OUTBOX_MAX_ATTEMPTS" default:"10"`
	// NotifyChannel is the Postgres LISTEN channel the insert trigger signals.
	// Empty keeps the publisher on pure polling.
	NotifyChannel string `envconfig:"BIZVISTAR_OUTBOX_NOTIFY_CHANNEL" default:"outbox_events"`
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
