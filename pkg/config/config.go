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
	Razorpay     RazorpayConfig
	Shiprocket   ShiprocketConfig
	Fulfillment  FulfillmentConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"ANVAYA_APP_ENV" required:"true"`
	Port         string `envconfig:"ANVAYA_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ANVAYA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ANVAYA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"ANVAYA_DB_DSN"`
	Driver string `envconfig:"ANVAYA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ANVAYA_DB_HOST"`
	LegacyPort     int    `envconfig:"ANVAYA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ANVAYA_DB_USER"`
	LegacyPassword string `envconfig:"ANVAYA_DB_PASSWORD"`
	LegacyName     string `envconfig:"ANVAYA_DB_NAME"`
	LegacySSLMode  string `envconfig:"ANVAYA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ANVAYA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ANVAYA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ANVAYA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ANVAYA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ANVAYA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ANVAYA_REDIS_ADDR"`
	Password     string        `envconfig:"ANVAYA_REDIS_PASSWORD"`
	DB           int           `envconfig:"ANVAYA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ANVAYA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ANVAYA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ANVAYA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ANVAYA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ANVAYA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ANVAYA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ANVAYA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ANVAYA_JWT_EXPIRATION_MINUTES" required:"true"`
}

// RazorpayConfig carries the shared secret used to verify gateway webhooks.
// The signature is an HMAC-SHA256 over the literal request body.
type RazorpayConfig struct {
	WebhookSecret string        `envconfig:"ANVAYA_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	EventTTL      time.Duration `envconfig:"ANVAYA_RAZORPAY_EVENT_TTL" default:"720h"`
}

// ShiprocketConfig carries the static token the carrier includes on webhook
// deliveries.
type ShiprocketConfig struct {
	WebhookToken string `envconfig:"ANVAYA_SHIPROCKET_WEBHOOK_TOKEN"`
}

type FulfillmentConfig struct {
	SLAUrgentWindow    time.Duration `envconfig:"ANVAYA_SLA_URGENT_WINDOW" default:"24h"`
	SLAWarningWindow   time.Duration `envconfig:"ANVAYA_SLA_WARNING_WINDOW" default:"48h"`
	CriticalShipWindow time.Duration `envconfig:"ANVAYA_CRITICAL_SHIP_WINDOW" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"ANVAYA_AUTO_MIGRATE" default:"false"`
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
