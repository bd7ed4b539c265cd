package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	DefaultOrg    string   `mapstructure:"DEFAULT_ORG"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`

	// Identity of this surveillance instance on the exchange network.
	InstanceID   string `mapstructure:"INSTANCE_ID"`
	InstanceName string `mapstructure:"INSTANCE_NAME"`

	// PartnersFile points at the JSON directory of peer instances. Each
	// partner entry carries the pairwise secret that derives the envelope
	// encryption and signing keys for that partnership.
	PartnersFile string `mapstructure:"PARTNERS_FILE"`

	// AcceptRejectEnabled selects the handshake flow for outgoing shares.
	// When false, shares are delivered directly without a pending request.
	AcceptRejectEnabled bool `mapstructure:"ACCEPT_REJECT_ENABLED"`

	// AuthSigningKey verifies bearer tokens on the operator API.
	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`

	// Rate limiting on the operator API, keyed per org and client IP.
	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	TLSEnabled  bool   `mapstructure:"TLS_ENABLED"`
	TLSCertFile string `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile  string `mapstructure:"TLS_KEY_FILE"`
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
	v.SetDefault("DEFAULT_ORG", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("PARTNERS_FILE", "partners.json")
	v.SetDefault("ACCEPT_REJECT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("DEFAULT_ORG")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("INSTANCE_ID")
	v.BindEnv("INSTANCE_NAME")
	v.BindEnv("PARTNERS_FILE")
	v.BindEnv("ACCEPT_REJECT_ENABLED")
	v.BindEnv("AUTH_SIGNING_KEY")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

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

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Exchange settings
// are optional in development so a single instance can run without peers,
// but a production instance must be able to identify itself and verify
// operator tokens: INSTANCE_ID and AUTH_SIGNING_KEY are required.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.InstanceID == "" {
			return fmt.Errorf("INSTANCE_ID is required in production")
		}
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY is required in production")
		}
	}

	// When TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
