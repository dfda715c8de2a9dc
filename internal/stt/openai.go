package stt

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voicenotes/internal/ai"
	"voicenotes/internal/storage"
)

// OpenAIConfig configures the OpenAI provider
type OpenAIConfig struct {
	APIKey string
	// BaseURL overrides the API root (proxies, tests)
	BaseURL     string
	ChatModel   string
	Instruction string
	Timeout     time.Duration
}

// OpenAIProvider transcribes with Whisper, then classifies the transcript with
// a chat completion that returns JSON.
type OpenAIProvider struct {
	client      *openai.Client
	chatModel   string
	instruction string
	logger      *slog.Logger
}

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIProvider{
		client:      openai.NewClientWithConfig(clientCfg),
		chatModel:   cfg.ChatModel,
		instruction: cfg.Instruction,
		logger:      logger.With("component", "openai"),
	}, nil
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Transcribe runs speech-to-text and returns the classification JSON as text
func (p *OpenAIProvider) Transcribe(ctx context.Context, uri string) (string, error) {
	startTime := time.Now()
	path := storage.Path(uri)

	audioResp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: path,
	})
	if err != nil {
		p.logger.Warn("transcription API error", "uri", uri, "error", err)
		return "", fmt.Errorf("%w: OpenAI transcription: %v", ErrTranscription, err)
	}

	transcript := strings.TrimSpace(audioResp.Text)
	if transcript == "" {
		return "", fmt.Errorf("%w: empty transcript returned", ErrTranscription)
	}
	p.logger.Debug("transcript received", "uri", uri, "length", len(transcript))

	systemPrompt, userPrompt := ai.BuildTranscriptPrompt(p.instruction, transcript)

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		p.logger.Warn("chat completion API error", "uri", uri, "error", err)
		return "", fmt.Errorf("%w: OpenAI chat completion: %v", ErrTranscription, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: OpenAI returned no choices", ErrTranscription)
	}

	content := resp.Choices[0].Message.Content
	p.logger.Info("classification received",
		"uri", uri,
		"length", len(content),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
		"duration", time.Since(startTime),
	)
	return content, nil
}
