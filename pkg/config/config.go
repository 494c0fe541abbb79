package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "BAZARLIVRE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "BAZARLIVRE_DB_DSN"
	EnvDBHost = "BAZARLIVRE_DB_HOST"
	EnvDBUser = "BAZARLIVRE_DB_USER"
	EnvDBName = "BAZARLIVRE_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	Commission   CommissionConfig
	Gateway      GatewayConfig
	Webhook      WebhookConfig
	Stripe       StripeConfig
	PayPal       PayPalConfig
	MercadoPago  MercadoPagoConfig
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
	Env          string `envconfig:"BAZARLIVRE_APP_ENV" required:"true"`
	Port         string `envconfig:"BAZARLIVRE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"BAZARLIVRE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BAZARLIVRE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BAZARLIVRE_DB_DSN"`
	Driver string `envconfig:"BAZARLIVRE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BAZARLIVRE_DB_HOST"`
	LegacyPort     int    `envconfig:"BAZARLIVRE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BAZARLIVRE_DB_USER"`
	LegacyPassword string `envconfig:"BAZARLIVRE_DB_PASSWORD"`
	LegacyName     string `envconfig:"BAZARLIVRE_DB_NAME"`
	LegacySSLMode  string `envconfig:"BAZARLIVRE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BAZARLIVRE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BAZARLIVRE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BAZARLIVRE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BAZARLIVRE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BAZARLIVRE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BAZARLIVRE_REDIS_ADDR"`
	Password     string        `envconfig:"BAZARLIVRE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BAZARLIVRE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BAZARLIVRE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BAZARLIVRE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BAZARLIVRE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BAZARLIVRE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BAZARLIVRE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BAZARLIVRE_AUTO_MIGRATE" default:"false"`
}

// CommissionConfig carries the fallback applied when no active rate exists.
type CommissionConfig struct {
	DefaultPercent string `envconfig:"BAZARLIVRE_COMMISSION_DEFAULT_PERCENT" default:"10"`
}

// GatewayConfig bounds outbound calls to every payment provider.
type GatewayConfig struct {
	RequestTimeout time.Duration `envconfig:"BAZARLIVRE_GATEWAY_REQUEST_TIMEOUT" default:"5s"`
	MaxRetries     uint64        `envconfig:"BAZARLIVRE_GATEWAY_MAX_RETRIES" default:"3"`
	RetryBaseDelay time.Duration `envconfig:"BAZARLIVRE_GATEWAY_RETRY_BASE_DELAY" default:"200ms"`
}

type WebhookConfig struct {
	IdempotencyTTL time.Duration `envconfig:"BAZARLIVRE_WEBHOOK_IDEMPOTENCY_TTL" default:"72h"`
}

type StripeConfig struct {
	APIKey string `envconfig:"BAZARLIVRE_STRIPE_API_KEY"`
	Secret string `envconfig:"BAZARLIVRE_STRIPE_WEBHOOK_SECRET"`
	Env    string `envconfig:"BAZARLIVRE_STRIPE_ENV" default:"test"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PayPalConfig struct {
	ClientID     string `envconfig:"BAZARLIVRE_PAYPAL_CLIENT_ID"`
	ClientSecret string `envconfig:"BAZARLIVRE_PAYPAL_CLIENT_SECRET"`
	Env          string `envconfig:"BAZARLIVRE_PAYPAL_ENV" default:"sandbox"`
	ReturnURL    string `envconfig:"BAZARLIVRE_PAYPAL_RETURN_URL"`
	CancelURL    string `envconfig:"BAZARLIVRE_PAYPAL_CANCEL_URL"`
	WebhookID    string `envconfig:"BAZARLIVRE_PAYPAL_WEBHOOK_ID"`
}

// Live reports whether the PayPal live API base should be used.
func (p PayPalConfig) Live() bool {
	return strings.EqualFold(strings.TrimSpace(p.Env), "live")
}

type MercadoPagoConfig struct {
	AccessToken string `envconfig:"BAZARLIVRE_MERCADOPAGO_ACCESS_TOKEN"`
	BaseURL     string `envconfig:"BAZARLIVRE_MERCADOPAGO_BASE_URL" default:"https://api.mercadopago.com"`
	SuccessURL  string `envconfig:"BAZARLIVRE_MERCADOPAGO_SUCCESS_URL"`
	FailureURL  string `envconfig:"BAZARLIVRE_MERCADOPAGO_FAILURE_URL"`
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
