// Package config loads service configuration from .env files and the process
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port           string        `mapstructure:"port"`
	GinMode        string        `mapstructure:"gin_mode"`
	CORSOrigins    string        `mapstructure:"cors_origins"`
	LogLevel       string        `mapstructure:"log_level"`
	DBDriver       string        `mapstructure:"db_driver"`
	DBDSN          string        `mapstructure:"db_dsn"`
	DBHost         string        `mapstructure:"db_host"`
	DBPort         string        `mapstructure:"db_port"`
	DBUser         string        `mapstructure:"db_user"`
	DBPassword     string        `mapstructure:"db_password"`
	DBName         string        `mapstructure:"db_name"`
	DBSSLMode      string        `mapstructure:"db_sslmode"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTL         time.Duration `mapstructure:"jwt_ttl"`
	MasterAdminID  string        `mapstructure:"master_admin_id"`
	PermCacheTTL   time.Duration `mapstructure:"perm_cache_ttl"`
	PermCacheSize  int           `mapstructure:"perm_cache_size"`
	LoginRateRPS   float64       `mapstructure:"login_rate_rps"`
	LoginRateBurst int           `mapstructure:"login_rate_burst"`
	SplitCompanyID string        `mapstructure:"split_company_id"`
}

const devJWTSecret = "dev_only_insecure_secret"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("gin_mode", "debug")
	v.SetDefault("cors_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "postgres")
	v.SetDefault("db_dsn", "")
	v.SetDefault("db_host", "localhost")
	v.SetDefault("db_port", "5432")
	v.SetDefault("db_user", "postgres")
	v.SetDefault("db_password", "postgres")
	v.SetDefault("db_name", "postgres")
	v.SetDefault("db_sslmode", "disable")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("jwt_ttl", "24h")
	v.SetDefault("master_admin_id", "")
	v.SetDefault("perm_cache_ttl", "5m")
	v.SetDefault("perm_cache_size", 128)
	v.SetDefault("login_rate_rps", 1.0)
	v.SetDefault("login_rate_burst", 5)
	v.SetDefault("split_company_id", "default")
}

// Load reads configs/.env and .env when present, then the environment.
func Load() (*Config, error) {
	for _, f := range []string{"configs/.env", ".env"} {
		if err := godotenv.Load(f); err == nil {
			slog.Debug("loaded env file", "path", f)
		}
	}
	return FromViper(viper.New())
}

// FromViper decodes configuration from v, which is set up to read the
// environment. Exposed for tests that preset values.
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "postgres", "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.JWTSecret == "" {
		if c.IsRelease() {
			return errors.New("JWT_SECRET is required in release mode")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.JWTTTL <= 0 {
		return errors.New("JWT_TTL must be positive")
	}
	if c.PermCacheSize <= 0 {
		c.PermCacheSize = 128
	}
	if c.LoginRateRPS <= 0 || c.LoginRateBurst <= 0 {
		return errors.New("LOGIN_RATE_RPS and LOGIN_RATE_BURST must be positive")
	}
	return nil
}

func (c *Config) IsRelease() bool { return c.GinMode == "release" }

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DSN returns DB_DSN, or builds one from the DB_* parts for the configured driver.
func (c *Config) DSN() string {
	if c.DBDSN != "" {
		return c.DBDSN
	}
	switch c.DBDriver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	case "sqlite":
		return c.DBName + ".db"
	default:
		return "postgres://" + c.DBUser + ":" + c.DBPassword + "@" + c.DBHost + ":" + c.DBPort + "/" + c.DBName + "?sslmode=" + c.DBSSLMode
	}
}
