package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	Storage    StorageConfig
	LLM        LLMConfig
	Worker     WorkerConfig
	Categorize CategorizeConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	AutoMigrate     bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr      string
	BodyLimit int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BasePrefix      string
}

// LLMConfig holds vision model configuration
type LLMConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float32
	Timeout      time.Duration
	SystemPrompt string
}

// WorkerConfig holds worker-pool and retry configuration
type WorkerConfig struct {
	Concurrency    int
	PollInterval   time.Duration
	LeaseDuration  time.Duration
	ProcessTimeout time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxDeliveries  int
}

// CategorizeConfig holds categorization batch configuration
type CategorizeConfig struct {
	BatchLimit int
	CronSpec   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxOpenConns:    getEnvAsInt("DB_MAX_CONNS", 20),
			MaxIdleConns:    getEnvAsInt("DB_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			AutoMigrate:     getEnvAsBool("DB_AUTOMIGRATE", false),
		},
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			BodyLimit: getEnvAsInt("HTTP_BODY_LIMIT", 16*1024*1024),
		},
		Storage: StorageConfig{
			Bucket:          getEnv("S3_BUCKET", ""),
			Region:          getEnv("S3_REGION", "us-east-1"),
			Endpoint:        getEnv("S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
			BasePrefix:      getEnv("S3_BASE_PREFIX", "snapshots"),
		},
		LLM: LLMConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Temperature:  getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			SystemPrompt: getEnv("LLM_SYSTEM_PROMPT", ""),
		},
		Worker: WorkerConfig{
			Concurrency:    getEnvAsInt("WORKER_CONCURRENCY", 4),
			PollInterval:   getEnvAsDuration("WORKER_POLL_INTERVAL", time.Second),
			LeaseDuration:  getEnvAsDuration("WORKER_LEASE_DURATION", time.Minute),
			ProcessTimeout: getEnvAsDuration("WORKER_PROCESS_TIMEOUT", 3*time.Minute),
			MaxAttempts:    getEnvAsInt("WORKER_MAX_ATTEMPTS", 3),
			InitialBackoff: getEnvAsDuration("WORKER_INITIAL_BACKOFF", 5*time.Second),
			MaxDeliveries:  getEnvAsInt("WORKER_MAX_DELIVERIES", 10),
		},
		Categorize: CategorizeConfig{
			BatchLimit: getEnvAsInt("CATEGORIZE_BATCH_LIMIT", 20),
			CronSpec:   getEnv("CATEGORIZE_CRON", ""),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate fails fast on configuration the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return ConfigurationError("DB_URL is required", nil)
	}
	if c.Storage.Bucket == "" {
		return ConfigurationError("S3_BUCKET is required", nil)
	}
	if c.LLM.APIKey == "" {
		return ConfigurationError("OPENAI_API_KEY is required", nil)
	}
	if c.Worker.Concurrency < 1 {
		return ConfigurationError("WORKER_CONCURRENCY must be at least 1", nil)
	}
	if c.Worker.MaxAttempts < 1 {
		return ConfigurationError("WORKER_MAX_ATTEMPTS must be at least 1", nil)
	}
	return nil
}
