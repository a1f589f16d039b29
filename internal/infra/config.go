package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// PaymentBaseURL is the blockchain escrow service endpoint.
	PaymentBaseURL string

	// AgentBaseURLTemplate expands an agent ID into that agent's API base
	// URL, e.g. "https://%s.agents.example.com".
	AgentBaseURLTemplate string

	// LockTimeout bounds how long a sweep lock may be held before another
	// instance is allowed to reclaim it. Shared by all lock keys.
	LockTimeout    time.Duration
	SweepInterval  time.Duration
	SweepBatchSize int

	// CollabTimeout caps every outbound agent/payment call.
	CollabTimeout time.Duration

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:               getEnv("APP_ENV", "development"),
		Port:                 getEnv("PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		PaymentBaseURL:       getEnv("PAYMENT_BASE_URL", "http://localhost:9090"),
		AgentBaseURLTemplate: getEnv("AGENT_BASE_URL_TEMPLATE", "http://localhost:8081/agents/%s"),
		LockTimeout:          time.Second * time.Duration(getEnvInt("LOCK_TIMEOUT_SECONDS", 120)),
		SweepInterval:        time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		SweepBatchSize:       getEnvInt("SWEEP_BATCH_SIZE", 50),
		CollabTimeout:        time.Second * time.Duration(getEnvInt("COLLAB_TIMEOUT_SECONDS", 10)),
		HTTPReadTimeout:      time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:     time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:      time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.LockTimeout <= 0 {
		return nil, fmt.Errorf("LOCK_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
