package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string   `mapstructure:"PORT"`
	Env                  string   `mapstructure:"ENV"`
	DatabaseURL          string   `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins          []string `mapstructure:"CORS_ORIGINS"`
	AuthSecret           string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer           string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience         string   `mapstructure:"AUTH_AUDIENCE"`
	BookingRetentionDays int      `mapstructure:"BOOKING_RETENTION_DAYS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("BOOKING_RETENTION_DAYS", 7)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("BOOKING_RETENTION_DAYS")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active: all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET/AUTH_ISSUER.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// the token verification secret and issuer must be set so that real JWT
// authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() {
		if c.AuthSecret == "" {
			return fmt.Errorf("AUTH_SECRET is required when ENV=%q; refusing to start without authentication", c.Env)
		}
		if c.AuthIssuer == "" {
			return fmt.Errorf("AUTH_ISSUER is required when ENV=%q", c.Env)
		}
	}
	if c.BookingRetentionDays < 1 {
		return fmt.Errorf("BOOKING_RETENTION_DAYS must be at least 1, got %d", c.BookingRetentionDays)
	}
	return nil
}
