// Package config provides configuration for the orchestration service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Generative text service
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Asset generation
	ImageGenURL     string
	ImageGenAPIKey  string
	ImageGenTimeout time.Duration
	LogoVariants    int

	// Deployment service
	DeployURL     string
	DeployAPIKey  string
	DeployTimeout time.Duration
	DeployWait    bool

	// Retrieval context provider (optional)
	RetrievalURL  string
	RetrievalTopK int

	// Content store
	StoreEndpoint  string
	StoreAccessKey string
	StoreSecretKey string
	StoreBucket    string
	StoreUseSSL    bool

	// Delivery
	PackageLinkTTL time.Duration

	// Execution
	MaxConcurrentRuns    int
	LevelParallelism     int
	ProgressPollInterval time.Duration

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:             getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:          getEnv("DATABASE_URL", "file:orchestrator.db?cache=shared&mode=rwc"),
		LLMBaseURL:           getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		LLMModel:             getEnv("LLM_MODEL", "gpt-4o"),
		LLMTimeout:           time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		ImageGenURL:          getEnv("IMAGEGEN_URL", "http://localhost:4000"),
		ImageGenAPIKey:       getEnv("IMAGEGEN_API_KEY", ""),
		ImageGenTimeout:      time.Duration(getEnvInt("IMAGEGEN_TIMEOUT_MS", 180000)) * time.Millisecond,
		LogoVariants:         getEnvInt("LOGO_VARIANTS", 4),
		DeployURL:            getEnv("DEPLOY_URL", "http://localhost:4100"),
		DeployAPIKey:         getEnv("DEPLOY_API_KEY", ""),
		DeployTimeout:        time.Duration(getEnvInt("DEPLOY_TIMEOUT_MS", 600000)) * time.Millisecond,
		DeployWait:           getEnvBool("DEPLOY_WAIT", true),
		RetrievalURL:         getEnv("RETRIEVAL_URL", ""),
		RetrievalTopK:        getEnvInt("RETRIEVAL_TOP_K", 5),
		StoreEndpoint:        getEnv("STORE_ENDPOINT", "localhost:9000"),
		StoreAccessKey:       getEnv("STORE_ACCESS_KEY", "minioadmin"),
		StoreSecretKey:       getEnv("STORE_SECRET_KEY", "minioadmin"),
		StoreBucket:          getEnv("STORE_BUCKET", "deliveries"),
		StoreUseSSL:          getEnvBool("STORE_USE_SSL", false),
		PackageLinkTTL:       time.Duration(getEnvInt("PACKAGE_LINK_TTL_S", 604800)) * time.Second,
		MaxConcurrentRuns:    getEnvInt("MAX_CONCURRENT_RUNS", 4),
		LevelParallelism:     getEnvInt("LEVEL_PARALLELISM", 1),
		ProgressPollInterval: time.Duration(getEnvInt("PROGRESS_POLL_MS", 500)) * time.Millisecond,
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
