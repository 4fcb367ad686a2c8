package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10, cfg.Dispatch.VoiceConcurrency)
	assert.Equal(t, 5, cfg.Dispatch.MaxRetry)
	assert.Equal(t, 2000, cfg.Dispatch.RetryBaseMs)
	assert.Equal(t, 24000, cfg.Synthesis.SampleRate)
	assert.Equal(t, 45000, cfg.Synthesis.SessionTimeoutMs)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DISPATCH_VOICE_CONCURRENCY", "4")
	t.Setenv("SYNTH_SESSION_TIMEOUT_MS", "10000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Dispatch.VoiceConcurrency)
	assert.Equal(t, 10000, cfg.Synthesis.SessionTimeoutMs)
}

func TestLoadRejectsBadInts(t *testing.T) {
	t.Setenv("SERVER_PORT", "not-a-number")

	_, err := Load()
	require.Error(t, err)
}

func TestValidateRequiresAPIKey(t *testing.T) {
	t.Setenv("SYNTH_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.Synthesis.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}
