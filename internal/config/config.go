package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"voicenotes/internal/stt"
)

type Config struct {
	Port       string
	DataDir    string
	CaptureDir string

	StoreBackend string
	DatabaseURL  string
	StoreKey     string

	STTProvider       string
	GeminiAPIKey      string
	GeminiCredentials string
	GeminiModel       string
	GeminiEndpoint    string
	OpenAIKey         string
	OpenAIModel       string
	OpenAIBaseURL     string
	STTPrompt         string
	STTAudioMIME      string
	STTTimeout        time.Duration

	RecordDebounce    time.Duration
	RecordMaxDuration time.Duration
	RecordCommand     string
	PlayCommand       string
	RecordCueFile     string

	LogLevel  string
	LogFormat string
	LogFile   string
	GinMode   string
}

// Supported store backends
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	dataDir := getEnv("DATA_DIR", "./data")
	cfg := &Config{
		Port:       getEnv("PORT", "8080"),
		DataDir:    dataDir,
		CaptureDir: getEnv("CAPTURE_DIR", filepath.Join(os.TempDir(), "vnote-capture")),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StoreKey:     getEnv("STORE_KEY", "AUDIO_FILES"),

		STTProvider:       getEnv("STT_PROVIDER", "gemini"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiCredentials: os.Getenv("GEMINI_CREDENTIALS"),
		GeminiModel:       getEnv("GEMINI_MODEL", stt.DefaultGeminiModel),
		GeminiEndpoint:    getEnv("GEMINI_ENDPOINT", stt.DefaultGeminiEndpoint),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       os.Getenv("OPENAI_MODEL"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		STTPrompt:         os.Getenv("STT_PROMPT"),
		STTAudioMIME:      getEnv("STT_AUDIO_MIME", stt.DefaultMIME),

		RecordCommand: os.Getenv("RECORD_COMMAND"),
		PlayCommand:   os.Getenv("PLAY_COMMAND"),
		RecordCueFile: os.Getenv("RECORD_CUE_FILE"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   os.Getenv("LOG_FILE"),
		GinMode:   os.Getenv("GIN_MODE"),
	}

	var err error
	// No timeout on the remote call unless one is asked for
	if cfg.STTTimeout, err = getDuration("STT_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.RecordDebounce, err = getDuration("RECORD_DEBOUNCE", 300*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.RecordMaxDuration, err = getDuration("RECORD_MAX_DURATION", 2*time.Minute); err != nil {
		return nil, err
	}

	switch cfg.StoreBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_BACKEND: %s. Supported: file, sqlite, postgres, memory", cfg.StoreBackend)
	}

	// Transcription keys are optional here; submitting without one
	// is rejected when it is attempted

	return cfg, nil
}

// AudioDir is where durable clips live
func (c *Config) AudioDir() string {
	return filepath.Join(c.DataDir, "audios")
}

// STTSettings maps the configuration onto the provider factory input
func (c *Config) STTSettings() stt.Settings {
	return stt.Settings{
		Provider:          c.STTProvider,
		GeminiAPIKey:      c.GeminiAPIKey,
		GeminiCredentials: c.GeminiCredentials,
		GeminiModel:       c.GeminiModel,
		GeminiEndpoint:    c.GeminiEndpoint,
		OpenAIKey:         c.OpenAIKey,
		OpenAIModel:       c.OpenAIModel,
		OpenAIBaseURL:     c.OpenAIBaseURL,
		Instruction:       c.STTPrompt,
		FallbackMIME:      c.STTAudioMIME,
		Timeout:           c.STTTimeout,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid %s %q: must not be negative", key, v)
	}
	return d, nil
}
