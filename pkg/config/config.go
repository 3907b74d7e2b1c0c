package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix namespaces every environment variable read by the platform.
const EnvPrefix = "PRINTMITRA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "PRINTMITRA_APP_ENV"
	EnvDBDSN  = "PRINTMITRA_DB_DSN"
	EnvDBHost = "PRINTMITRA_DB_HOST"
	EnvDBUser = "PRINTMITRA_DB_USER"
	EnvDBName = "PRINTMITRA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Conversion   ConversionConfig
	Printers     PrinterConfig
	Orders       OrderConfig
	Notify       NotifyConfig
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
	Env          string `envconfig:"PRINTMITRA_APP_ENV" required:"true"`
	Port         string `envconfig:"PRINTMITRA_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"PRINTMITRA_APP_BASE_URL"`
	LogLevel     string `envconfig:"PRINTMITRA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PRINTMITRA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PRINTMITRA_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PRINTMITRA_DB_DSN"`
	Driver string `envconfig:"PRINTMITRA_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PRINTMITRA_DB_HOST"`
	LegacyPort     int    `envconfig:"PRINTMITRA_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PRINTMITRA_DB_USER"`
	LegacyPassword string `envconfig:"PRINTMITRA_DB_PASSWORD"`
	LegacyName     string `envconfig:"PRINTMITRA_DB_NAME"`
	LegacySSLMode  string `envconfig:"PRINTMITRA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PRINTMITRA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PRINTMITRA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PRINTMITRA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PRINTMITRA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PRINTMITRA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PRINTMITRA_REDIS_ADDR"`
	Password     string        `envconfig:"PRINTMITRA_REDIS_PASSWORD"`
	DB           int           `envconfig:"PRINTMITRA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PRINTMITRA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PRINTMITRA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PRINTMITRA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PRINTMITRA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PRINTMITRA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// GatewayConfig carries the Razorpay credentials and client tuning.
type GatewayConfig struct {
	KeyID     string        `envconfig:"PRINTMITRA_RAZORPAY_KEY_ID"`
	KeySecret string        `envconfig:"PRINTMITRA_RAZORPAY_KEY_SECRET"`
	BaseURL   string        `envconfig:"PRINTMITRA_RAZORPAY_BASE_URL" default:"https://api.razorpay.com"`
	Timeout   time.Duration `envconfig:"PRINTMITRA_RAZORPAY_TIMEOUT" default:"15s"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PRINTMITRA_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"PRINTMITRA_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PRINTMITRA_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName string `envconfig:"PRINTMITRA_GCS_BUCKET_NAME" required:"true"`
	PublicBase string `envconfig:"PRINTMITRA_GCS_PUBLIC_BASE" default:"https://storage.googleapis.com"`
}

// ConversionConfig tunes the DOCX to PDF provider cascade.
type ConversionConfig struct {
	PrimaryAPIURL  string        `envconfig:"PRINTMITRA_CONVERT_API_URL"`
	PrimaryAPIKey  string        `envconfig:"PRINTMITRA_CONVERT_API_KEY"`
	PrimaryTimeout time.Duration `envconfig:"PRINTMITRA_CONVERT_API_TIMEOUT" default:"45s"`

	LocalBinary  string        `envconfig:"PRINTMITRA_CONVERT_LOCAL_BINARY" default:"soffice"`
	LocalTimeout time.Duration `envconfig:"PRINTMITRA_CONVERT_LOCAL_TIMEOUT" default:"60s"`

	RenderServiceURL string        `envconfig:"PRINTMITRA_RENDER_SERVICE_URL"`
	RenderTimeout    time.Duration `envconfig:"PRINTMITRA_RENDER_TIMEOUT" default:"15s"`
	WebhookSecret    string        `envconfig:"PRINTMITRA_RENDER_WEBHOOK_SECRET"`
	JobTTL           time.Duration `envconfig:"PRINTMITRA_RENDER_JOB_TTL" default:"24h"`
}

// PrinterConfig describes the printer fleet and the dispatch retry policy.
// Endpoints accepts a single URL, a comma separated list, or a bracketed list.
type PrinterConfig struct {
	Endpoints     string        `envconfig:"PRINTMITRA_PRINTER_API_URLS"`
	APIKey        string        `envconfig:"PRINTMITRA_PRINTER_API_KEY"`
	Timeout       time.Duration `envconfig:"PRINTMITRA_PRINTER_TIMEOUT" default:"20s"`
	HealthTimeout time.Duration `envconfig:"PRINTMITRA_PRINTER_HEALTH_TIMEOUT" default:"5s"`
	MaxAttempts   int           `envconfig:"PRINTMITRA_PRINTER_MAX_ATTEMPTS" default:"5"`
	RetryBase     time.Duration `envconfig:"PRINTMITRA_PRINTER_RETRY_BASE" default:"30s"`
}

// OrderConfig holds order lifecycle knobs.
type OrderConfig struct {
	StaleAfter        time.Duration `envconfig:"PRINTMITRA_ORDER_STALE_AFTER" default:"24h"`
	TemplateSurcharge int64         `envconfig:"PRINTMITRA_TEMPLATE_SURCHARGE_PAISE" default:"0"`
	CommissionPercent int           `envconfig:"PRINTMITRA_TEMPLATE_COMMISSION_PERCENT" default:"20"`
}

type NotifyConfig struct {
	ServiceURL string        `envconfig:"PRINTMITRA_NOTIFY_SERVICE_URL"`
	Timeout    time.Duration `envconfig:"PRINTMITRA_NOTIFY_TIMEOUT" default:"10s"`
	DedupTTL   time.Duration `envconfig:"PRINTMITRA_NOTIFY_DEDUP_TTL" default:"72h"`
}

type FeatureFlagsConfig struct {
	UseSQLite              bool `envconfig:"PRINTMITRA_USE_SQLITE" default:"false"`
	AutoMigrate            bool `envconfig:"PRINTMITRA_AUTO_MIGRATE" default:"false"`
	StrictReconcileAmounts bool `envconfig:"PRINTMITRA_STRICT_RECONCILE_AMOUNTS" default:"false"`
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
