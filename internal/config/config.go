package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required")

type Config struct {
	GeminiAPIKey     string
	GeminiTextModel  string
	GeminiImageModel string

	StoreDriver   string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	HTTPPort           string
	LogLevel           string
	JWTSecret          string
	AdminEmail         string
	RateLimitPerMinute int
}

// AssistantConfigured reports whether an API key is present. Without it the service still runs but
// every assistant-dependent action is disabled.
func (c Config) AssistantConfigured() bool {
	return c.GeminiAPIKey != "" && c.GeminiAPIKey != "MISSING_API_KEY"
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Debug().Msg("no .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GeminiTextModel:    getEnv("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		GeminiImageModel:   getEnv("GEMINI_IMAGE_MODEL", "imagen-3.0-generate-002"),
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", "sqlite")),
		DatabaseURL:        getEnv("DATABASE_URL", "mike.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvAsInt("REDIS_DB", 0),
		RedisPrefix:        getEnv("REDIS_PREFIX", "mike"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           strings.ToUpper(getEnv("LOG_LEVEL", "INFO")),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AdminEmail:         strings.ToLower(getEnv("ADMIN_EMAIL", "")),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if !AppConfig.AssistantConfigured() {
		log.Warn().Msg("GEMINI_API_KEY is not set; assistant features are disabled")
	}
}

// Validate checks what the HTTP server needs; CLI subcommands that only touch the store skip it.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}
