// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	minGatewayTimeout = 1 * time.Second
	maxGatewayTimeout = 10 * time.Second
)

// ErrMissingSigningSecret is returned when no session signing secret is
// configured outside local development.
var ErrMissingSigningSecret = errors.New("SESSION_SIGNING_SECRET must be set outside development")

// Config holds all configuration for the application.
type Config struct {
	AppEnv string `mapstructure:"APP_ENV"`

	// Server Configuration
	GinMode       string        `mapstructure:"GIN_MODE"`
	ServerHost    string        `mapstructure:"SERVER_HOST"`
	ServerPort    string        `mapstructure:"SERVER_PORT"`
	ServerTimeout time.Duration `mapstructure:"-"` // SERVER_TIMEOUT_SECONDS

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBSQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"-"` // DB_CONN_MAX_LIFETIME_MINUTES

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// External identity gateway (Mabel)
	MabelGatewayURL     string        `mapstructure:"MABEL_GATEWAY_URL"`
	MabelGatewayTimeout time.Duration `mapstructure:"-"` // MABEL_GATEWAY_TIMEOUT_SECONDS

	// Sessions
	SessionSigningSecret    string        `mapstructure:"SESSION_SIGNING_SECRET"`
	SessionMaxAge           time.Duration `mapstructure:"-"` // SESSION_MAX_AGE_HOURS
	SessionRefreshThreshold time.Duration `mapstructure:"-"` // SESSION_REFRESH_THRESHOLD_SECONDS
	SessionCookieName       string        `mapstructure:"SESSION_COOKIE_NAME"`
	SessionCookieDomain     string        `mapstructure:"SESSION_COOKIE_DOMAIN"`
	SessionCookieSecure     bool          `mapstructure:"SESSION_COOKIE_SECURE"`
	SessionCookieSameSite   string        `mapstructure:"SESSION_COOKIE_SAMESITE"`
	LoginRedirectPath       string        `mapstructure:"LOGIN_REDIRECT_PATH"`

	// Comma separated; "*" allows any origin without credentials.
	CORSAllowedOrigins string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Optional shared revocation store
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	// Cron Jobs
	VerificationSweepSchedule string `mapstructure:"VERIFICATION_SWEEP_SCHEDULE"`
}

// IsDevelopment reports whether the process runs in local development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, EnvDevelopment)
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()

	v.SetDefault("APP_ENV", EnvDevelopment)

	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)

	v.SetDefault("DB_DRIVER", DBDriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "mabel_auth_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_SQLITE_PATH", "mabel_auth.db")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("MABEL_GATEWAY_URL", "https://core.mabelinsights.com")
	v.SetDefault("MABEL_GATEWAY_TIMEOUT_SECONDS", 5)

	v.SetDefault("SESSION_SIGNING_SECRET", "")
	v.SetDefault("SESSION_MAX_AGE_HOURS", 720)
	v.SetDefault("SESSION_REFRESH_THRESHOLD_SECONDS", 3600)
	v.SetDefault("SESSION_COOKIE_NAME", "session_token")
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_COOKIE_SECURE", true)
	v.SetDefault("SESSION_COOKIE_SAMESITE", "lax")
	v.SetDefault("LOGIN_REDIRECT_PATH", "/signin")

	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")

	v.SetDefault("VERIFICATION_SWEEP_SCHEDULE", "@daily")

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Duration keys are plain integers in the environment.
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.MabelGatewayTimeout = time.Duration(v.GetInt("MABEL_GATEWAY_TIMEOUT_SECONDS")) * time.Second
	cfg.SessionMaxAge = time.Duration(v.GetInt("SESSION_MAX_AGE_HOURS")) * time.Hour
	cfg.SessionRefreshThreshold = time.Duration(v.GetInt("SESSION_REFRESH_THRESHOLD_SECONDS")) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate normalises bounded values and enforces the settings the service
// cannot run without.
func (c *Config) Validate() error {
	if c.MabelGatewayTimeout < minGatewayTimeout {
		c.MabelGatewayTimeout = minGatewayTimeout
	}
	if c.MabelGatewayTimeout > maxGatewayTimeout {
		c.MabelGatewayTimeout = maxGatewayTimeout
	}
	if c.SessionRefreshThreshold <= 0 {
		c.SessionRefreshThreshold = time.Hour
	}
	if c.SessionMaxAge <= 0 {
		c.SessionMaxAge = 30 * 24 * time.Hour
	}
	if strings.TrimSpace(c.MabelGatewayURL) == "" {
		return fmt.Errorf("FATAL: MABEL_GATEWAY_URL is not set")
	}
	c.MabelGatewayURL = strings.TrimRight(c.MabelGatewayURL, "/")

	switch c.DBDriver {
	case DBDriverPostgres, DBDriverSQLite:
	default:
		return fmt.Errorf("FATAL: unsupported DB_DRIVER %q", c.DBDriver)
	}

	// Fail closed: without a secret, sessions are only issued in development,
	// where the caller substitutes a random per-process secret.
	if strings.TrimSpace(c.SessionSigningSecret) == "" && !c.IsDevelopment() {
		return fmt.Errorf("FATAL: %w", ErrMissingSigningSecret)
	}
	return nil
}

// AllowedOrigins splits CORSAllowedOrigins. An empty result means any origin.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			return nil
		}
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// PostgresDSN builds the DSN for the GORM postgres driver.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}
