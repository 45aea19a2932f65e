// Package config loads process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DatabasePath string
	DataDir      string
	LogLevel     string
	LogPretty    bool

	// Status server; empty address disables it.
	ListenAddr string

	// Control-loop cadences.
	AnalysisInterval    time.Duration
	AnalysisWindowHours float64
	RegimeInterval      time.Duration
	RecalcEvery         int

	// Transaction verification.
	ConfirmationTimeout time.Duration

	// Off-site backup; empty bucket disables it.
	BackupCronSpec      string
	BackupRetentionDays int
	S3Endpoint          string
	S3Region            string
	S3Bucket            string
	S3AccessKeyID       string
	S3SecretAccessKey   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DatabasePath: getEnv("DATABASE_PATH", "./data/decisions.db"),
		DataDir:      getEnv("DATA_DIR", "./data"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogPretty:    getEnvAsBool("LOG_PRETTY", false),

		ListenAddr: getEnv("LISTEN_ADDR", ":8090"),

		AnalysisInterval:    getEnvAsDuration("ANALYSIS_INTERVAL", 15*time.Minute),
		AnalysisWindowHours: getEnvAsFloat("ANALYSIS_WINDOW_HOURS", 24),
		RegimeInterval:      getEnvAsDuration("REGIME_INTERVAL", 30*time.Second),
		RecalcEvery:         getEnvAsInt("ADAPTIVE_RECALC_EVERY", 50),

		ConfirmationTimeout: getEnvAsDuration("CONFIRMATION_TIMEOUT", 90*time.Second),

		BackupCronSpec:      getEnv("BACKUP_CRON", "0 3 * * *"), // 3 AM nightly
		BackupRetentionDays: getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            getEnv("S3_REGION", "auto"),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3AccessKeyID:       getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:   getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.AnalysisWindowHours <= 0 {
		return fmt.Errorf("ANALYSIS_WINDOW_HOURS must be positive")
	}
	if c.S3Bucket != "" && (c.S3AccessKeyID == "" || c.S3SecretAccessKey == "") {
		return fmt.Errorf("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY are required when S3_BUCKET is set")
	}
	return nil
}

// BackupEnabled reports whether off-site backups are configured.
func (c *Config) BackupEnabled() bool {
	return c.S3Bucket != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
