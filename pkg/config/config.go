package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	AuthRateLimit AuthRateLimitConfig
	FeatureFlags  FeatureFlagsConfig
	Google        GoogleOAuthConfig
	Registry      RegistryConfig
	Garage        GarageConfig
	GCP           GCPConfig
	GCS           GCSConfig
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
	Env          string `envconfig:"AUTOLINK_APP_ENV" required:"true"`
	Port         string `envconfig:"AUTOLINK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AUTOLINK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AUTOLINK_LOG_WARN_STACK" default:"false"`
	WebOrigin    string `envconfig:"AUTOLINK_WEB_ORIGIN" default:"https://app.autolink.example"`
	NativeScheme string `envconfig:"AUTOLINK_NATIVE_SCHEME" default:"autolink"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AUTOLINK_DB_DSN"`
	Driver string `envconfig:"AUTOLINK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AUTOLINK_DB_HOST"`
	LegacyPort     int    `envconfig:"AUTOLINK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AUTOLINK_DB_USER"`
	LegacyPassword string `envconfig:"AUTOLINK_DB_PASSWORD"`
	LegacyName     string `envconfig:"AUTOLINK_DB_NAME"`
	LegacySSLMode  string `envconfig:"AUTOLINK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AUTOLINK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AUTOLINK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AUTOLINK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AUTOLINK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AUTOLINK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AUTOLINK_REDIS_ADDR"`
	Password     string        `envconfig:"AUTOLINK_REDIS_PASSWORD"`
	DB           int           `envconfig:"AUTOLINK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AUTOLINK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AUTOLINK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AUTOLINK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AUTOLINK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AUTOLINK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"AUTOLINK_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"AUTOLINK_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"AUTOLINK_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"AUTOLINK_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type AuthRateLimitConfig struct {
	SignInWindow  time.Duration `envconfig:"AUTOLINK_AUTH_RATE_LIMIT_SIGNIN_WINDOW" default:"1m"`
	SignInIPLimit int           `envconfig:"AUTOLINK_AUTH_RATE_LIMIT_SIGNIN_IP_LIMIT" default:"20"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AUTOLINK_AUTO_MIGRATE" default:"false"`

	// DevBypassPro disables the free-plan vehicle gate for development
	// accounts. Read once at boot; never enable in production.
	DevBypassPro bool `envconfig:"AUTOLINK_DEV_BYPASS_PRO" default:"false"`
}

type GoogleOAuthConfig struct {
	ClientID     string `envconfig:"AUTOLINK_GOOGLE_CLIENT_ID" required:"true"`
	ClientSecret string `envconfig:"AUTOLINK_GOOGLE_CLIENT_SECRET" required:"true"`

	// Endpoint overrides are used by tests; empty means Google defaults.
	AuthURL     string `envconfig:"AUTOLINK_GOOGLE_AUTH_URL"`
	TokenURL    string `envconfig:"AUTOLINK_GOOGLE_TOKEN_URL"`
	UserInfoURL string `envconfig:"AUTOLINK_GOOGLE_USERINFO_URL"`
}

type RegistryConfig struct {
	BaseURL string        `envconfig:"AUTOLINK_REGISTRY_BASE_URL" default:"https://vpic.nhtsa.dot.gov/api/vehicles"`
	Timeout time.Duration `envconfig:"AUTOLINK_REGISTRY_TIMEOUT" default:"10s"`
}

type GarageConfig struct {
	MaxVehicles      int `envconfig:"AUTOLINK_GARAGE_MAX_VEHICLES" default:"5"`
	FreePlanVehicles int `envconfig:"AUTOLINK_GARAGE_FREE_PLAN_VEHICLES" default:"1"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"AUTOLINK_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"AUTOLINK_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"AUTOLINK_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName      string        `envconfig:"AUTOLINK_GCS_BUCKET_NAME" default:"autolink-avatars"`
	UploadURLExpiry time.Duration `envconfig:"AUTOLINK_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
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
