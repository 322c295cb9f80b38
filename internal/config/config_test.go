package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CLASSIFY_MAX_ATTEMPTS", "")
	t.Setenv("CLASSIFY_RETRY_DELAY", "")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg := Load()

	assert.Equal(t, 2, cfg.ClassifyMaxAttempts)
	assert.Equal(t, time.Second, cfg.ClassifyRetryDelay)
	assert.Equal(t, "openrouter", cfg.LLMProvider)
	assert.False(t, cfg.AIConfigured())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CLASSIFY_MAX_ATTEMPTS", "4")
	t.Setenv("CLASSIFY_RETRY_DELAY", "250ms")
	t.Setenv("LLM_PROVIDER", "Gemini")
	t.Setenv("GEMINI_API_KEY", "k")
	t.Setenv("TRIAGE_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 4, cfg.ClassifyMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.ClassifyRetryDelay)
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.True(t, cfg.AIConfigured())
	assert.True(t, cfg.TriageEnabled)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("CLASSIFY_MAX_ATTEMPTS", "two")
	t.Setenv("TRIAGE_INTERVAL", "soon")

	cfg := Load()

	assert.Equal(t, 2, cfg.ClassifyMaxAttempts)
	assert.Equal(t, 5*time.Minute, cfg.TriageInterval)
}
