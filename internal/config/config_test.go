package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("WAKE_PHRASES", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, ProviderGemini, cfg.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 10, cfg.Chat.HistoryLimit)
	assert.Equal(t, []string{"ok rasa", "okay rasa"}, cfg.Voice.WakePhrases)
	assert.Equal(t, 30*time.Second, cfg.Breaker.Timeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9090")
	t.Setenv("AI_PROVIDER", "ARK")
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao")
	t.Setenv("ARK_TEMPERATURE", "0.7")
	t.Setenv("WAKE_PHRASES", "Hey Rasa, ok rasa")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("BREAKER_TIMEOUT", "5s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.True(t, cfg.AIEnabled())
	require.NotNil(t, cfg.Ark.Temperature)
	assert.InDelta(t, 0.7, *cfg.Ark.Temperature, 1e-9)
	assert.Equal(t, []string{"hey rasa", "ok rasa"}, cfg.Voice.WakePhrases)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.Breaker.Timeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("port", func(t *testing.T) {
		t.Setenv("PORT", "80 80")
		_, err := Load()
		assert.ErrorContains(t, err, "PORT")
	})
	t.Run("provider", func(t *testing.T) {
		t.Setenv("AI_PROVIDER", "openai")
		_, err := Load()
		assert.ErrorContains(t, err, "AI_PROVIDER")
	})
}
