package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfigLLMEnv(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-test")
	t.Setenv("LLM_TIMEOUT", "45s")
	t.Setenv("LLM_JSON_MODE", "true")

	cfg := LoadConfig().LLM
	assert.Equal(t, "gsk-test", cfg.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Timeout)
	assert.True(t, cfg.JSONMode)
}

func TestLoadConfigJSONModeDefaults(t *testing.T) {
	cases := map[string]bool{
		"":      false,
		"1":     true,
		"false": false,
		"nope":  false,
	}
	for value, want := range cases {
		t.Setenv("LLM_JSON_MODE", value)
		assert.Equal(t, want, LoadConfig().LLM.JSONMode, "LLM_JSON_MODE=%q", value)
	}
}
