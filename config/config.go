package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Pesapal  PesapalConfig
	Admin    AdminConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type PesapalConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string

	// NotificationID is the registered IPN id sent with every order so the
	// gateway knows where to deliver payment notifications.
	NotificationID string
	CallbackURL    string
	Branch         string

	AuthTimeout   time.Duration
	SubmitTimeout time.Duration
	QueryTimeout  time.Duration
}

type AdminConfig struct {
	Token string

	// ExpireMinAge is how old a pending transaction must be before an
	// operator may expire it. There is no automatic expiry.
	ExpireMinAge time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8031"),
			Env:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "maidmatch_payments"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Pesapal: PesapalConfig{
			BaseURL:        getEnv("PESAPAL_BASE_URL", "https://pay.pesapal.com/v3"),
			ConsumerKey:    getEnv("PESAPAL_CONSUMER_KEY", ""),
			ConsumerSecret: getEnv("PESAPAL_CONSUMER_SECRET", ""),
			NotificationID: getEnv("PESAPAL_IPN_ID", ""),
			CallbackURL:    getEnv("PESAPAL_CALLBACK_URL", "https://maidmatch.app/pesapal/payment-complete"),
			Branch:         getEnv("PESAPAL_BRANCH", "MaidMatch"),
			AuthTimeout:    getEnvDuration("PESAPAL_AUTH_TIMEOUT", 15*time.Second),
			SubmitTimeout:  getEnvDuration("PESAPAL_SUBMIT_TIMEOUT", 20*time.Second),
			QueryTimeout:   getEnvDuration("PESAPAL_QUERY_TIMEOUT", 15*time.Second),
		},
		Admin: AdminConfig{
			Token:        getEnv("ADMIN_TOKEN", ""),
			ExpireMinAge: getEnvDuration("ADMIN_EXPIRE_MIN_AGE", 24*time.Hour),
		},
	}

	if cfg.Pesapal.ConsumerKey == "" || cfg.Pesapal.ConsumerSecret == "" {
		return nil, fmt.Errorf("payment configuration missing: PESAPAL_CONSUMER_KEY and PESAPAL_CONSUMER_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
