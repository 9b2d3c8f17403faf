package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Storage  StorageConfig
	Database DatabaseConfig
	CORS     CORSConfig
	Billing  BillingConfig
	Gateway  GatewayConfig
	SMS      SMSConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string
	Env  string
}

// LogConfig holds logging configuration. An empty Level picks the
// environment default.
type LogConfig struct {
	Level string
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	PoolMin  int
	PoolMax  int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// BillingConfig drives the scheduled sweep and write retries.
type BillingConfig struct {
	SweepCron      string
	OverdueCron    string
	Timezone       string
	SweepWorkers   int
	LockMaxRetries int
	JobTimeout     time.Duration
}

// GatewayConfig holds settings for the mobile-money callback endpoint.
type GatewayConfig struct {
	CallbackToken string
}

// SMSConfig holds Twilio credentials. SMS is disabled when AccountSID is empty.
type SMSConfig struct {
	AccountSID string
	AuthToken  string
	FromPhone  string
}

// Enabled reports whether SMS delivery is configured.
func (c SMSConfig) Enabled() bool {
	return c.AccountSID != ""
}

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults for development
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "rentledger")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:3001")
	v.SetDefault("BILLING_CRON", "0 0 1 * *")
	v.SetDefault("OVERDUE_CRON", "0 9 6 * *")
	v.SetDefault("BILLING_TIMEZONE", "Africa/Nairobi")
	v.SetDefault("SWEEP_WORKERS", 8)
	v.SetDefault("LOCK_MAX_RETRIES", 5)
	v.SetDefault("JOB_TIMEOUT", "10m")

	// Bind environment variables
	v.AutomaticEnv()

	// Build configuration
	cfg := &Config{
		Server: ServerConfig{
			Port: v.GetString("PORT"),
			Env:  v.GetString("ENV"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(v.GetString("STORAGE_DRIVER")),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			SSLMode:  v.GetString("DB_SSLMODE"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
		Billing: BillingConfig{
			SweepCron:      v.GetString("BILLING_CRON"),
			OverdueCron:    v.GetString("OVERDUE_CRON"),
			Timezone:       v.GetString("BILLING_TIMEZONE"),
			SweepWorkers:   v.GetInt("SWEEP_WORKERS"),
			LockMaxRetries: v.GetInt("LOCK_MAX_RETRIES"),
			JobTimeout:     v.GetDuration("JOB_TIMEOUT"),
		},
		Gateway: GatewayConfig{
			CallbackToken: v.GetString("MPESA_CALLBACK_TOKEN"),
		},
		SMS: SMSConfig{
			AccountSID: v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:  v.GetString("TWILIO_AUTH_TOKEN"),
			FromPhone:  v.GetString("TWILIO_FROM_PHONE"),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Storage.Driver {
	case StoragePostgres:
		if err := c.Database.validate(); err != nil {
			return err
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage.Driver)
	}

	// Validate CORS config
	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	if err := c.Billing.validate(); err != nil {
		return err
	}

	if c.SMS.Enabled() && (c.SMS.AuthToken == "" || c.SMS.FromPhone == "") {
		return fmt.Errorf("TWILIO_AUTH_TOKEN and TWILIO_FROM_PHONE are required when TWILIO_ACCOUNT_SID is set")
	}

	return nil
}

func (d DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if d.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if d.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if d.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if d.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if d.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if d.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if d.PoolMin > d.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}
	return nil
}

func (b BillingConfig) validate() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(b.SweepCron); err != nil {
		return fmt.Errorf("BILLING_CRON is invalid: %w", err)
	}
	if _, err := parser.Parse(b.OverdueCron); err != nil {
		return fmt.Errorf("OVERDUE_CRON is invalid: %w", err)
	}
	if _, err := time.LoadLocation(b.Timezone); err != nil {
		return fmt.Errorf("BILLING_TIMEZONE is invalid: %w", err)
	}
	if b.SweepWorkers < 1 {
		return fmt.Errorf("SWEEP_WORKERS must be at least 1")
	}
	if b.LockMaxRetries < 1 {
		return fmt.Errorf("LOCK_MAX_RETRIES must be at least 1")
	}
	if b.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT must be positive")
	}
	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
