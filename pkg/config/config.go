package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Stripe    StripeConfig
	Carrier   CarrierConfig
	Fees      FeesConfig
	Affiliate AffiliateConfig
	Dispatch  DispatchConfig
	Webhook   WebhookConfig
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
	Env          string `envconfig:"VENDIO_APP_ENV" required:"true"`
	Port         string `envconfig:"VENDIO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"VENDIO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VENDIO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"VENDIO_DB_DSN"`
	Driver string `envconfig:"VENDIO_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"VENDIO_DB_HOST"`
	Port     int    `envconfig:"VENDIO_DB_PORT" default:"5432"`
	User     string `envconfig:"VENDIO_DB_USER"`
	Password string `envconfig:"VENDIO_DB_PASSWORD"`
	Name     string `envconfig:"VENDIO_DB_NAME"`
	SSLMode  string `envconfig:"VENDIO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"VENDIO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"VENDIO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"VENDIO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"VENDIO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.Host == "" || d.User == "" || d.Name == "" {
		return fmt.Errorf("either VENDIO_DB_DSN or host/user/name settings are required")
	}
	d.DSN = fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(d.Password),
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"VENDIO_REDIS_URL" required:"true"`
	Password     string        `envconfig:"VENDIO_REDIS_PASSWORD"`
	DB           int           `envconfig:"VENDIO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"VENDIO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"VENDIO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"VENDIO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"VENDIO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"VENDIO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type StripeConfig struct {
	APIKey          string        `envconfig:"VENDIO_STRIPE_API_KEY" required:"true"`
	Secret          string        `envconfig:"VENDIO_STRIPE_WEBHOOK_SECRET" required:"true"`
	Env             string        `envconfig:"VENDIO_STRIPE_ENV" default:"test"`
	TransferTimeout time.Duration `envconfig:"VENDIO_STRIPE_TRANSFER_TIMEOUT" default:"10s"`
}

func (s StripeConfig) Environment() string {
	return s.Env
}

type CarrierConfig struct {
	BaseURL        string        `envconfig:"VENDIO_CARRIER_BASE_URL"`
	APIKey         string        `envconfig:"VENDIO_CARRIER_API_KEY"`
	DefaultCarrier string        `envconfig:"VENDIO_CARRIER_DEFAULT" default:"correos"`
	RequestTimeout time.Duration `envconfig:"VENDIO_CARRIER_TIMEOUT" default:"15s"`
}

// FeesConfig is the settlement fee schedule. Passed explicitly into the
// calculator so schedules stay testable per call.
type FeesConfig struct {
	PlatformFeePercent float64 `envconfig:"VENDIO_PLATFORM_FEE_PERCENT" default:"12"`
	SMSBaseCostCents   int64   `envconfig:"VENDIO_SMS_BASE_COST_CENTS" default:"9"`
	SMSMarkupPercent   float64 `envconfig:"VENDIO_SMS_MARKUP_PERCENT" default:"20"`
	CourierFeeBps      int64   `envconfig:"VENDIO_COURIER_FEE_BPS" default:"1500"`
}

type AffiliateConfig struct {
	CommissionSharePercent  float64 `envconfig:"VENDIO_AFFILIATE_SHARE_PERCENT" default:"25"`
	AttributionWindowMonths int     `envconfig:"VENDIO_AFFILIATE_WINDOW_MONTHS" default:"12"`
}

type DispatchConfig struct {
	DefaultRadiusKm float64 `envconfig:"VENDIO_DISPATCH_DEFAULT_RADIUS_KM" default:"10"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"VENDIO_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}
