package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Env       string
	Server    ServerConfig
	Store     StoreConfig
	Database  DatabaseConfig
	Email     EmailConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Scheduler SchedulerConfig
	Audience  AudienceConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// StoreConfig selects the persistence backend: "postgres" or "memory".
type StoreConfig struct {
	Driver string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// EmailConfig for the SMTP transport. Empty credentials outside production
// select the log transport.
type EmailConfig struct {
	FromAddress string
	FromName    string
	SMTPHost    string
	SMTPPort    int
	SMTPUser    string
	SMTPPass    string
}

func (c EmailConfig) HasCredentials() bool {
	return c.SMTPHost != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// RabbitMQConfig is optional; an empty URL keeps the in-memory queue.
// QueuePrefix namespaces the per-topic queue names.
type RabbitMQConfig struct {
	URL         string
	QueuePrefix string
}

// RedisConfig is optional; an empty Addr disables the shared sweep lock.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type SchedulerConfig struct {
	SweepInterval   time.Duration
	StaleSending    time.Duration
	SpecialDayHour  int
	SendConcurrency int
}

type AudienceConfig struct {
	NewCustomerWindow time.Duration
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func (c *Config) Production() bool { return c.Env == "production" }

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  time.Duration(getEnvInt("READ_TIMEOUT_SEC", 30)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("WRITE_TIMEOUT_SEC", 30)) * time.Second,
		},
		Store: StoreConfig{
			Driver: getEnv("STORE_DRIVER", "postgres"),
		},
		Database: DatabaseConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "shopnotify"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Email: EmailConfig{
			FromAddress: getEnv("EMAIL_FROM_ADDRESS", "noreply@example.com"),
			FromName:    getEnv("EMAIL_FROM_NAME", "Shop Notifications"),
			SMTPHost:    os.Getenv("SMTP_HOST"),
			SMTPPort:    getEnvInt("SMTP_PORT", 587),
			SMTPUser:    os.Getenv("SMTP_USER"),
			SMTPPass:    os.Getenv("SMTP_PASS"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:         os.Getenv("RABBITMQ_URL"),
			QueuePrefix: getEnv("RABBITMQ_QUEUE_PREFIX", "shopnotify"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		Scheduler: SchedulerConfig{
			SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_SEC", 60)) * time.Second,
			StaleSending:    time.Duration(getEnvInt("STALE_SENDING_MINUTES", 30)) * time.Minute,
			SpecialDayHour:  getEnvInt("SPECIAL_DAY_HOUR", 9),
			SendConcurrency: getEnvInt("SEND_CONCURRENCY", 4),
		},
		Audience: AudienceConfig{
			NewCustomerWindow: time.Duration(getEnvInt("NEW_CUSTOMER_WINDOW_DAYS", 30)) * 24 * time.Hour,
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Production() && !c.Email.HasCredentials() {
		return fmt.Errorf("SMTP_HOST, SMTP_USER and SMTP_PASS are required in production")
	}
	if c.Scheduler.SpecialDayHour < 0 || c.Scheduler.SpecialDayHour > 23 {
		return fmt.Errorf("SPECIAL_DAY_HOUR must be between 0 and 23")
	}
	if c.Scheduler.SendConcurrency < 1 {
		c.Scheduler.SendConcurrency = 1
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
