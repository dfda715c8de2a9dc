package stt

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Settings carries everything the factory needs to build any provider
type Settings struct {
	Provider string

	GeminiAPIKey      string
	GeminiCredentials string
	GeminiModel       string
	GeminiEndpoint    string

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string

	Instruction  string
	FallbackMIME string
	Timeout      time.Duration
}

// CreateProvider creates a provider based on configuration
func CreateProvider(s Settings, logger *slog.Logger) (Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	providerName := strings.ToLower(strings.TrimSpace(s.Provider))

	// Default to Gemini if not specified
	if providerName == "" {
		providerName = "gemini"
		logger.Info("STT_PROVIDER not set, defaulting to 'gemini'", "component", "stt")
	}

	switch providerName {
	case "gemini":
		return NewGeminiProvider(GeminiConfig{
			APIKey:       s.GeminiAPIKey,
			Credentials:  s.GeminiCredentials,
			Model:        s.GeminiModel,
			Endpoint:     s.GeminiEndpoint,
			Instruction:  s.Instruction,
			FallbackMIME: s.FallbackMIME,
			Timeout:      s.Timeout,
		}, logger)
	case "openai":
		return NewOpenAIProvider(OpenAIConfig{
			APIKey:      s.OpenAIKey,
			BaseURL:     s.OpenAIBaseURL,
			ChatModel:   s.OpenAIModel,
			Instruction: s.Instruction,
			Timeout:     s.Timeout,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported STT provider: %s. Supported: gemini, openai", providerName)
	}
}
