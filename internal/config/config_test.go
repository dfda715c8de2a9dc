package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("DATA_DIR", "")
	t.Setenv("STT_TIMEOUT", "")
	t.Setenv("RECORD_DEBOUNCE", "")
	t.Setenv("RECORD_MAX_DURATION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendFile, cfg.StoreBackend)
	assert.Equal(t, "AUDIO_FILES", cfg.StoreKey)
	assert.Equal(t, filepath.Join("./data", "audios"), cfg.AudioDir())
	assert.Equal(t, 300*time.Millisecond, cfg.RecordDebounce)
	assert.Equal(t, 2*time.Minute, cfg.RecordMaxDuration)
	assert.Zero(t, cfg.STTTimeout)
	assert.Equal(t, "audio/mp3", cfg.STTAudioMIME)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "SQLite")
	t.Setenv("DATA_DIR", "/var/lib/vnote")
	t.Setenv("STT_TIMEOUT", "45s")
	t.Setenv("STT_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-x")
	t.Setenv("STT_PROMPT", "Resume el audio")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.StoreBackend)
	assert.Equal(t, "/var/lib/vnote/audios", cfg.AudioDir())

	s := cfg.STTSettings()
	assert.Equal(t, "openai", s.Provider)
	assert.Equal(t, "sk-x", s.OpenAIKey)
	assert.Equal(t, "Resume el audio", s.Instruction)
	assert.Equal(t, 45*time.Second, s.Timeout)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":       {"STORE_BACKEND": "redis"},
		"postgres without url":  {"STORE_BACKEND": "postgres", "DATABASE_URL": ""},
		"bad duration":          {"RECORD_DEBOUNCE": "soon"},
		"negative max duration": {"RECORD_MAX_DURATION": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
