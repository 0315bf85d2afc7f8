package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Stripe   StripeConfig
	Email    EmailConfig
	Storage  StorageConfig
	Log      LogConfig
	Cron     CronConfig
}

type ServerConfig struct {
	Port        string
	CORSOrigins string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN prefers DATABASE_URL and otherwise assembles a key/value DSN.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type StripeConfig struct {
	SecretKey       string
	WebhookSecret   string
	TrialPeriodDays int64
	PriceStandard   string
	PricePremium    string
	ProductStandard string
	ProductPremium  string
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
}

type StorageConfig struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

// Enabled reports whether invoice archiving is configured.
func (s StorageConfig) Enabled() bool {
	return s.Bucket != ""
}

type LogConfig struct {
	Level       string
	Format      string
	Development bool
}

type CronConfig struct {
	IncompleteSweepSpec string
	IncompleteMaxAge    time.Duration
}

func Load() *Config {
	godotenv.Load() // .env is optional

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "5000"),
			CORSOrigins: getEnv("CORS_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "deluxe"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "deluxe-dev-secret"),
			TTL:    getDuration("JWT_TTL", 24*time.Hour),
		},
		Stripe: StripeConfig{
			SecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
			WebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
			TrialPeriodDays: int64(getInt("STRIPE_TRIAL_DAYS", 7)),
			PriceStandard:   getEnv("STRIPE_PRICE_STANDARD", "1"),
			PricePremium:    getEnv("STRIPE_PRICE_PREMIUM", "2"),
			ProductStandard: getEnv("STRIPE_PRODUCT_STANDARD", "1"),
			ProductPremium:  getEnv("STRIPE_PRODUCT_PREMIUM", "2"),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         getEnv("EMAIL_FROM", "Deluxe <noreply@deluxe.com>"),
		},
		Storage: StorageConfig{
			Bucket:    os.Getenv("INVOICE_BUCKET"),
			Region:    getEnv("INVOICE_BUCKET_REGION", "eu-central-1"),
			Endpoint:  os.Getenv("INVOICE_BUCKET_ENDPOINT"),
			AccessKey: os.Getenv("INVOICE_BUCKET_ACCESS_KEY"),
			SecretKey: os.Getenv("INVOICE_BUCKET_SECRET_KEY"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Format:      getEnv("LOG_FORMAT", "json"),
			Development: getBool("LOG_DEVELOPMENT", false),
		},
		Cron: CronConfig{
			IncompleteSweepSpec: getEnv("INCOMPLETE_SWEEP_SPEC", "@hourly"),
			IncompleteMaxAge:    getDuration("INCOMPLETE_MAX_AGE", 23*time.Hour),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}
