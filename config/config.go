package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Protector  ProtectorConfig  `mapstructure:"protector"`
	Log        LogConfig        `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig mirrors the bearer token validation parameters: key, issuer and audience
// are all mandatory.
type JWTConfig struct {
	Key      string `mapstructure:"key"`
	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`
}

type GatewayConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	SecretKey       string        `mapstructure:"secret_key"`
	WebhookSecret   string        `mapstructure:"webhook_secret"`
	CallbackURL     string        `mapstructure:"callback_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	VerifyCallbacks bool          `mapstructure:"verify_callbacks"`
}

type SettlementConfig struct {
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
	Retention     time.Duration `mapstructure:"retention"` // committed references kept this long
}

type LedgerConfig struct {
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

type ProtectorConfig struct {
	Key string `mapstructure:"key"` // master secret, expanded with HKDF
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: WALLET_.
// Nested keys use underscore: WALLET_DATABASE_HOST, WALLET_JWT_KEY, etc.
// A .env file in the working directory is loaded first when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "digital_wallet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.key", "")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("gateway.base_url", "https://api.paystack.co")
	v.SetDefault("gateway.secret_key", "")
	v.SetDefault("gateway.webhook_secret", "")
	v.SetDefault("gateway.callback_url", "")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.verify_callbacks", false)
	v.SetDefault("settlement.lease_duration", "30s")
	v.SetDefault("settlement.claim_timeout", "2s")
	v.SetDefault("settlement.retention", "72h")
	v.SetDefault("ledger.max_retries", 5)
	v.SetDefault("ledger.retry_backoff", "20ms")
	v.SetDefault("protector.key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: WALLET_DATABASE_HOST -> database.host
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate reports configuration the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWT.Key == "" || c.JWT.Issuer == "" || c.JWT.Audience == "" {
		errs = append(errs, errors.New("jwt configuration values are missing"))
	}
	if c.Gateway.WebhookSecret == "" {
		errs = append(errs, errors.New("gateway webhook secret is missing"))
	}
	if c.Protector.Key == "" {
		errs = append(errs, errors.New("protector key is missing"))
	}
	if c.Settlement.LeaseDuration <= 0 {
		errs = append(errs, errors.New("settlement lease duration must be positive"))
	}
	if c.Settlement.ClaimTimeout <= 0 {
		errs = append(errs, errors.New("settlement claim timeout must be positive"))
	}
	if c.Settlement.Retention < c.Settlement.LeaseDuration {
		errs = append(errs, errors.New("settlement retention must not be shorter than the lease"))
	}
	if c.Ledger.MaxRetries < 1 {
		errs = append(errs, errors.New("ledger max retries must be at least 1"))
	}
	return errors.Join(errs...)
}
