package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Backend is the pre-existing support API this gateway fronts. It owns
	// persistence, auth, chat completion, ASR/TTS and knowledge ingestion.
	BackendURL string

	Port        string
	GinMode     string
	CORSOrigins []string

	// Widget defaults
	DevClientKey string
	Language     string
	Sector       string
	ASRLanguage  string
	HistoryLimit int

	// Per-client-key rate limiting on the public widget endpoints
	RateLimitReqs   int
	RateLimitWindow int

	// Redis holds widget session history and rate-limit counters. When the
	// URL is empty the gateway falls back to in-process state.
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// Telemetry
	OTLPEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		BackendURL:  getEnv("BACKEND_URL", ""),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		DevClientKey: getEnv("DEV_CLIENT_KEY", "dev-client-key"),
		Language:     getEnv("WIDGET_LANGUAGE", "am"),
		Sector:       getEnv("WIDGET_SECTOR", "admin_defined"),
		ASRLanguage:  getEnv("ASR_LANGUAGE", "amh"),
		HistoryLimit: getEnvInt("HISTORY_LIMIT", 10),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 3600),

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		OTLPEndpoint:   getEnv("OTLP_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required - set it in .env file")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
