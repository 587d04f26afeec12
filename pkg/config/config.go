package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	Pricing      PricingConfig
	Gateway      GatewayConfig
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
	if err := cfg.Pricing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TYREKART_APP_ENV" required:"true"`
	Port         string `envconfig:"TYREKART_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"TYREKART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TYREKART_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"TYREKART_DB_DSN"`
	Driver string `envconfig:"TYREKART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TYREKART_DB_HOST"`
	LegacyPort     int    `envconfig:"TYREKART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TYREKART_DB_USER"`
	LegacyPassword string `envconfig:"TYREKART_DB_PASSWORD"`
	LegacyName     string `envconfig:"TYREKART_DB_NAME"`
	LegacySSLMode  string `envconfig:"TYREKART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"TYREKART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TYREKART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TYREKART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TYREKART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TYREKART_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TYREKART_REDIS_ADDR"`
	Password     string        `envconfig:"TYREKART_REDIS_PASSWORD"`
	DB           int           `envconfig:"TYREKART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TYREKART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TYREKART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TYREKART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TYREKART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TYREKART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// PricingConfig carries the checkout pricing knobs. Amounts are rupees.
type PricingConfig struct {
	FreeShippingThreshold string `envconfig:"TYREKART_FREE_SHIPPING_THRESHOLD" default:"5000"`
	ShippingFlatFee       string `envconfig:"TYREKART_SHIPPING_FLAT_FEE" default:"250"`
}

func (p PricingConfig) validate() error {
	if _, err := decimal.NewFromString(p.FreeShippingThreshold); err != nil {
		return fmt.Errorf("invalid free shipping threshold: %w", err)
	}
	if _, err := decimal.NewFromString(p.ShippingFlatFee); err != nil {
		return fmt.Errorf("invalid shipping flat fee: %w", err)
	}
	return nil
}

// FreeShippingThresholdAmount returns the parsed threshold.
func (p PricingConfig) FreeShippingThresholdAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(p.FreeShippingThreshold)
	return d
}

// ShippingFlatFeeAmount returns the parsed flat fee.
func (p PricingConfig) ShippingFlatFeeAmount() decimal.Decimal {
	d, _ := decimal.NewFromString(p.ShippingFlatFee)
	return d
}

// GatewayConfig covers the payment gateway webhook boundary.
type GatewayConfig struct {
	WebhookSecret  string        `envconfig:"TYREKART_GATEWAY_WEBHOOK_SECRET"`
	IdempotencyTTL time.Duration `envconfig:"TYREKART_GATEWAY_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TYREKART_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TYREKART_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TYREKART_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TYREKART_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TYREKART_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	OrdersTopic        string `envconfig:"TYREKART_PUBSUB_ORDERS_TOPIC" default:"tk-order-events"`
	OrdersSubscription string `envconfig:"TYREKART_PUBSUB_ORDERS_SUBSCRIPTION"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"TYREKART_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"TYREKART_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"TYREKART_OUTBOX_MAX_ATTEMPTS" default:"10"`
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
