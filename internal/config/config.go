package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            string
	Environment     string
	SupabaseURL     string
	SupabaseKey     string
	SupabaseDBURL   string
	SupabaseJWKSURL string // Constructed from SupabaseURL + /auth/v1/.well-known/jwks.json
	CORSOrigins     string
	TablePrefix     string
	// LLM Configuration
	AnthropicAPIKey  string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	DefaultProvider  string
	DefaultModel     string
	FastTextModel    string
	AudioModel       string
	ImageModel       string
	// Flow/job execution
	MaxFanOutConcurrency int // bounded concurrency cap for lesson/media fan-out (spec.md §5)
	StallTimeoutSeconds  int // last_heartbeat age beyond which a running flow is considered stalled
	ReconcileIntervalSec int // how often the stall reconciler ticks
	LLMRequestTimeoutSec int // LLM_TIMEOUT_SECONDS; loaded here, but no Gateway operation applies it as a deadline
	LLMMaxRetries        int // retry budget for retryable error kinds
	LLMCacheEnabled      bool
	ObjectStoreBucket    string // disk-backed object store base directory (spec.md §6 "OBJECT_STORE_BUCKET")
	// Logging
	LogDir      string // when set, server logs also go to a rotating file under this directory
	LogMaxFiles int    // number of rotated log files to retain
	// Debug flags
	Debug bool // DEBUG flag (defaults to true outside prod); no server code reads it
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)
	supabaseURL := getEnv("SUPABASE_URL", "")

	// Construct JWKS URL from Supabase URL
	jwksURL := supabaseURL + "/auth/v1/.well-known/jwks.json"

	return &Config{
		Port:            getEnv("PORT", "8080"),
		Environment:     env,
		SupabaseURL:     supabaseURL,
		SupabaseKey:     getEnv("SUPABASE_KEY", ""),
		SupabaseDBURL:   getEnv("DATABASE_URL", ""),
		SupabaseJWKSURL: jwksURL,
		CORSOrigins:     getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:     tablePrefix,
		// LLM Configuration
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		DefaultProvider:  getEnv("LLM_PROVIDER", "anthropic"),
		DefaultModel:     getEnv("LLM_MODEL_DEFAULT", "claude-sonnet-4-5-20250929"),
		FastTextModel:    getEnv("FAST_TEXT_MODEL", "claude-haiku-4-5-20251001"),
		AudioModel:       getEnv("AUDIO_MODEL", "tts-1"),
		ImageModel:       getEnv("IMAGE_MODEL", "dall-e-3"),
		// Flow/job execution
		MaxFanOutConcurrency: getEnvInt("LESSON_PARALLELISM", 3),
		StallTimeoutSeconds:  getEnvInt("STALL_TIMEOUT_SECONDS", 300),
		ReconcileIntervalSec: getEnvInt("RECONCILE_INTERVAL_SECONDS", 60),
		LLMRequestTimeoutSec: getEnvInt("LLM_TIMEOUT_SECONDS", 120),
		LLMMaxRetries:        getEnvInt("LLM_MAX_RETRIES", 3),
		LLMCacheEnabled:      getEnv("LLM_CACHE_ENABLED", "true") == "true",
		ObjectStoreBucket:    getEnv("OBJECT_STORE_BUCKET", "./data/objects"),
		// Logging
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
