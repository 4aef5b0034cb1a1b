package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigDefaultsAndOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("STORE_DRIVER", "Redis")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")
	t.Setenv("ADMIN_EMAIL", "Boss@Example.com")
	t.Setenv("LOG_LEVEL", "debug")

	LoadConfig()

	assert.False(t, AppConfig.AssistantConfigured())
	assert.Equal(t, "redis", AppConfig.StoreDriver)
	assert.Equal(t, 3, AppConfig.RedisDB)
	assert.Equal(t, 30, AppConfig.RateLimitPerMinute)
	assert.Equal(t, "boss@example.com", AppConfig.AdminEmail)
	assert.Equal(t, "DEBUG", AppConfig.LogLevel)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	assert.ErrorIs(t, Config{}.Validate(), ErrMissingJWTSecret)
	assert.NoError(t, Config{JWTSecret: "s"}.Validate())
}

func TestAssistantConfigured(t *testing.T) {
	assert.False(t, Config{GeminiAPIKey: "MISSING_API_KEY"}.AssistantConfigured())
	assert.True(t, Config{GeminiAPIKey: "k"}.AssistantConfigured())
}
