package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
	assert.Equal(t, DefaultAgentURL, cfg.AgentURL)
	assert.Equal(t, 3001, cfg.Port)
	assert.Equal(t, 0, cfg.GRPCPort)
	assert.Equal(t, "@every 5m", cfg.KeepAliveSchedule)
	assert.Equal(t, "graph", cfg.Audio.Platform)
	assert.Equal(t, 16000, cfg.Audio.SampleRate)
	assert.Equal(t, 4096, cfg.Audio.FramesPerBuffer)
	assert.Equal(t, "linear16", cfg.Audio.OutputEncoding)
	assert.Equal(t, "none", cfg.Audio.OutputContainer)
	assert.Equal(t, "nova-2", cfg.Agent.ListenModel)
	assert.Equal(t, "gpt-4o-mini", cfg.Agent.ThinkModel)
	assert.Equal(t, "aura-asteria-en", cfg.Agent.Voice)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(map[string]string{
		"EXPO_PUBLIC_API_URL": "https://coach.example.com/",
		"PORT":                "8080",
		"AUDIO_PLATFORM":      "Device",
		"KEEPALIVE_SCHEDULE":  "",
		"AGENT_VOICE":         "aura-orion-en",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://coach.example.com", cfg.APIURL)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "device", cfg.Audio.Platform)
	assert.Empty(t, cfg.KeepAliveSchedule)
	assert.Equal(t, "aura-orion-en", cfg.Agent.Voice)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	_, err := FromEnv(lookupFrom(map[string]string{
		"PORT":           "eighty",
		"AUDIO_PLATFORM": "speaker",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "AUDIO_PLATFORM")
}
